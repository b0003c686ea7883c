package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"slotbot/internal/storage"
	"slotbot/internal/transport"
	"slotbot/pkg/logx"
	"slotbot/pkg/tgui"
)

const helpText = `Available commands:
/start - Check that the bot is alive
/help - Show this help

Group admin commands:
/setcontact @username - Set the public contact for this group
  Tip: reply to a user's message with /setcontact to set that person instead
/getcontact - Show the current contact for this group
/unsetcontact - Clear the contact (also resets paid status)

/setnotify <user_id> - Set the notifier user id (DMed on jackpot)
/unsetnotify - Clear the notifier user id (keeps the contact @username)

Notes:
- To receive DMs from the bot, the notifier must /start the bot once.
- Anonymous admins ("send as group") are recognized as admins.`

func (r *Router) cmdStart(ctx context.Context, req *request) error {
	r.replyText(ctx, req.msg, "Copy this emoji and send it on its own to roll!")
	r.replyText(ctx, req.msg, "🎰")
	return nil
}

func (r *Router) cmdHelp(ctx context.Context, req *request) error {
	r.replyText(ctx, req.msg, helpText)
	return nil
}

func (r *Router) cmdSetContact(ctx context.Context, req *request) error {
	msg := req.msg
	if !r.authz.IsAuthorized(ctx, msg, 0) {
		r.replyText(ctx, msg, "Only group admins can set the contact.")
		return nil
	}

	var patch storage.ContactPatch
	var who string
	switch {
	case len(req.args) > 0 && strings.HasPrefix(req.args[0], "@") && len(req.args[0]) > 1:
		handle := strings.TrimPrefix(req.args[0], "@")
		// Keeps any configured notifier id untouched.
		patch = storage.ContactPatch{Username: storage.SetString(handle)}
		who = "@" + handle
	case msg.ReplyTo != nil && msg.ReplyTo.UserID != 0:
		name := msg.ReplyTo.UserName
		if name == "" {
			name = "this user"
		}
		patch = storage.ContactPatch{
			Username: storage.ClearString(),
			UserID:   storage.SetInt64(msg.ReplyTo.UserID),
			Name:     storage.SetString(name),
		}
		who = name
	default:
		r.replyText(ctx, msg, "Usage: /setcontact @username  (or reply to a user with /setcontact)")
		return nil
	}

	if err := r.store.UpsertContact(ctx, msg.ChatID, patch); err != nil {
		return fmt.Errorf("set contact: %w", err)
	}
	r.replyText(ctx, msg, fmt.Sprintf("Contact set to %s for this group ✅", who))
	return nil
}

func (r *Router) cmdGetContact(ctx context.Context, req *request) error {
	msg := req.msg
	rec, ok, err := r.store.GetContact(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("get contact: %w", err)
	}
	if !ok {
		r.replyText(ctx, msg, "No contact set for this group.")
		return nil
	}

	switch c := rec.Contact(); c.Kind {
	case storage.ContactHandle:
		r.reply(ctx, msg, "Current contact: @"+c.Handle, &transport.SendOptions{
			URLButton: &transport.URLButton{Text: "Message @" + c.Handle, URL: tgui.DeepLink(c.Handle)},
		})
	case storage.ContactUser:
		name := c.Name
		if name == "" {
			name = "this user"
		}
		r.reply(ctx, msg, "Current contact: "+tgui.Mention(name, c.UserID).String(), &transport.SendOptions{
			ParseMode:      transport.ModeHTML,
			DisablePreview: true,
		})
	default:
		r.replyText(ctx, msg, "No contact set for this group.")
	}
	return nil
}

func (r *Router) cmdUnsetContact(ctx context.Context, req *request) error {
	msg := req.msg
	if !r.authz.IsAuthorized(ctx, msg, 0) {
		r.replyText(ctx, msg, "Only group admins can unset the contact.")
		return nil
	}
	if err := r.store.DeleteContact(ctx, msg.ChatID); err != nil {
		return fmt.Errorf("unset contact: %w", err)
	}
	r.replyText(ctx, msg, "Contact cleared for this group.")
	return nil
}

func (r *Router) cmdSetNotify(ctx context.Context, req *request) error {
	msg := req.msg
	if !msg.ChatType.IsGroup() {
		r.replyText(ctx, msg, "Use /setnotify inside the group you want to configure.")
		return nil
	}
	if !r.authz.IsAuthorized(ctx, msg, 0) {
		r.replyText(ctx, msg, "Only group admins can set the notifier.")
		return nil
	}
	if len(req.args) == 0 {
		r.replyText(ctx, msg, "Usage: /setnotify <user_id>")
		return nil
	}
	uid, err := strconv.ParseInt(req.args[0], 10, 64)
	if err != nil || uid <= 0 {
		r.replyText(ctx, msg, "User id must be digits only.")
		return nil
	}

	// Only the notifier id changes; handle and cached name stay.
	if err := r.store.UpsertContact(ctx, msg.ChatID, storage.ContactPatch{UserID: storage.SetInt64(uid)}); err != nil {
		return fmt.Errorf("set notifier: %w", err)
	}

	// Confirm deliverability once. A failed DM is a warning, not an error.
	status := "✅ I was able to DM them."
	notice := fmt.Sprintf("You'll receive jackpot notifications for %q. "+
		"If you didn't expect this, ask a group admin to /unsetnotify.", chatLabel(msg))
	if err := r.client.SendDM(ctx, uid, notice); err != nil {
		status = "⚠️ I couldn't DM them yet. They must /start the bot once."
		if !transport.IsForbidden(err) {
			r.log.Warn("notifier confirmation DM failed", logx.Int64("user_id", uid), logx.Err(err))
		}
	}
	r.replyText(ctx, msg, fmt.Sprintf("Notifier set to user_id=%d. %s", uid, status))
	return nil
}

func (r *Router) cmdUnsetNotify(ctx context.Context, req *request) error {
	msg := req.msg
	if !r.authz.IsAuthorized(ctx, msg, 0) {
		r.replyText(ctx, msg, "Only group admins can unset the notifier.")
		return nil
	}

	rec, ok, err := r.store.GetContact(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("unset notifier: %w", err)
	}
	if !ok {
		r.replyText(ctx, msg, "No contact configured yet for this group.")
		return nil
	}
	if rec.UserID == 0 {
		r.replyText(ctx, msg, "No notifier user id is set for this group.")
		return nil
	}

	patch := storage.ContactPatch{UserID: storage.ClearInt64(), Name: storage.ClearString()}
	if err := r.store.UpsertContact(ctx, msg.ChatID, patch); err != nil {
		return fmt.Errorf("unset notifier: %w", err)
	}
	r.replyText(ctx, msg, "Notifier cleared. The contact @username remains unchanged.")
	return nil
}

func (r *Router) cmdSetPaid(ctx context.Context, req *request) error {
	msg := req.msg
	if !msg.ChatType.IsGroup() {
		r.replyText(ctx, msg, "Use this inside the group.")
		return nil
	}
	if !r.authz.IsOwner(msg.FromID, msg.FromUsername) {
		r.replyText(ctx, msg, "Only the bot owner can set paid status.")
		return nil
	}

	var val string
	if len(req.args) > 0 {
		val = strings.ToLower(req.args[0])
	}
	var paid bool
	switch val {
	case "on", "true", "yes", "1":
		paid = true
	case "off", "false", "no", "0":
		paid = false
	default:
		r.replyText(ctx, msg, "Usage: /setpaid on|off")
		return nil
	}

	if err := r.store.SetPaid(ctx, msg.ChatID, paid); err != nil {
		return fmt.Errorf("set paid: %w", err)
	}
	r.replyText(ctx, msg, fmt.Sprintf("Paid set to %v for %s.", paid, chatLabel(msg)))
	return nil
}

func (r *Router) cmdGetPaid(ctx context.Context, req *request) error {
	paid, err := r.store.GetPaid(ctx, req.msg.ChatID)
	if err != nil {
		return fmt.Errorf("get paid: %w", err)
	}
	r.replyText(ctx, req.msg, fmt.Sprintf("Paid: %v", paid))
	return nil
}

func (r *Router) cmdSendAd(ctx context.Context, req *request) error {
	msg := req.msg
	if !r.authz.IsOwner(msg.FromID, msg.FromUsername) {
		r.replyText(ctx, msg, "Only the bot owner can send ads.")
		return nil
	}

	// Argument text wins over a replied-to message.
	text := strings.TrimSpace(strings.Join(req.args, " "))
	if text == "" && msg.ReplyTo != nil {
		text = strings.TrimSpace(msg.ReplyTo.Text)
	}
	if text == "" {
		r.replyText(ctx, msg, "Usage: /sendad <text>\nOr reply to a message with /sendad.")
		return nil
	}

	// A broadcast runs to completion once started; it must not be cut off
	// by the per-command timeout.
	sum, err := r.engine.Run(context.WithoutCancel(ctx), text)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	r.replyText(ctx, msg, sum.Report())
	return nil
}

func chatLabel(msg *transport.Message) string {
	if msg.ChatTitle != "" {
		return msg.ChatTitle
	}
	return "this group"
}
