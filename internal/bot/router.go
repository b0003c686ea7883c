// Package bot routes inbound commands to their handlers, gating mutations
// through auth and talking back through the transport client.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"slotbot/internal/auth"
	"slotbot/internal/broadcast"
	"slotbot/internal/jackpot"
	"slotbot/internal/storage"
	"slotbot/internal/transport"
	"slotbot/pkg/logx"
)

// MenuEntry describes one command for the platform's command menu.
type MenuEntry struct {
	Name        string
	Description string
}

// Menu lists the public command set in display order.
func Menu() []MenuEntry {
	return []MenuEntry{
		{Name: "start", Description: "Check bot status"},
		{Name: "help", Description: "Show help"},
		{Name: "setcontact", Description: "Set group contact (@username or via reply)"},
		{Name: "getcontact", Description: "Show group contact"},
		{Name: "unsetcontact", Description: "Clear group contact"},
		{Name: "setnotify", Description: "Set notifier user id (DM on jackpot)"},
		{Name: "unsetnotify", Description: "Clear notifier user id"},
		{Name: "setpaid", Description: "Owner: set paid status"},
		{Name: "getpaid", Description: "Show paid status"},
		{Name: "sendad", Description: "Owner: broadcast to unpaid groups"},
	}
}

// CommandNames returns just the command names, for handler registration.
func CommandNames() []string {
	menu := Menu()
	out := make([]string, 0, len(menu))
	for _, m := range menu {
		out = append(out, m.Name)
	}
	return out
}

type Router struct {
	store  storage.Store
	authz  *auth.Resolver
	client transport.Client
	engine *broadcast.Engine
	dice   *jackpot.Handler
	log    logx.Logger

	cmdTimeout time.Duration
}

func NewRouter(store storage.Store, authz *auth.Resolver, client transport.Client, engine *broadcast.Engine, dice *jackpot.Handler, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		store:      store,
		authz:      authz,
		client:     client,
		engine:     engine,
		dice:       dice,
		log:        log,
		cmdTimeout: 30 * time.Second,
	}
}

type request struct {
	msg  *transport.Message
	cmd  string
	args []string
}

// HandleCommand dispatches one command update. A collaborator failure never
// crashes the loop: every path ends in a user-visible reply or a log line.
func (r *Router) HandleCommand(ctx context.Context, cmd string, msg *transport.Message) {
	if msg == nil {
		return
	}
	req := &request{msg: msg, cmd: cmd, args: parseArgs(msg.Text)}
	log := r.log.With(
		logx.String("cmd", cmd),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
	)

	cctx, cancel := context.WithTimeout(ctx, r.cmdTimeout)
	defer cancel()

	r.refreshTitle(cctx, msg)

	start := time.Now()
	err := r.dispatch(cctx, req, log)
	if err != nil {
		log.Error("command failed", logx.Err(err), logx.Duration("dur", time.Since(start)))
		r.replyText(cctx, msg, "Oops, something went wrong. Please try again.")
		return
	}
	log.Debug("command ok", logx.Duration("dur", time.Since(start)))
}

func (r *Router) dispatch(ctx context.Context, req *request, log logx.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic recovered",
				logx.Any("panic", p),
				logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	switch req.cmd {
	case "start":
		return r.cmdStart(ctx, req)
	case "help":
		return r.cmdHelp(ctx, req)
	case "setcontact":
		return r.cmdSetContact(ctx, req)
	case "getcontact":
		return r.cmdGetContact(ctx, req)
	case "unsetcontact":
		return r.cmdUnsetContact(ctx, req)
	case "setnotify":
		return r.cmdSetNotify(ctx, req)
	case "unsetnotify":
		return r.cmdUnsetNotify(ctx, req)
	case "setpaid":
		return r.cmdSetPaid(ctx, req)
	case "getpaid":
		return r.cmdGetPaid(ctx, req)
	case "sendad":
		return r.cmdSendAd(ctx, req)
	default:
		log.Debug("unknown command")
		return nil
	}
}

// HandleDice forwards dice rolls to the jackpot handler.
func (r *Router) HandleDice(ctx context.Context, msg *transport.Message) {
	r.refreshTitle(ctx, msg)
	r.dice.HandleDice(ctx, msg)
}

// refreshTitle opportunistically caches the chat title for group messages.
// Best-effort: failures are logged and swallowed.
func (r *Router) refreshTitle(ctx context.Context, msg *transport.Message) {
	if msg == nil || !msg.ChatType.IsGroup() || msg.ChatTitle == "" {
		return
	}
	if err := r.store.SetGroupTitle(ctx, msg.ChatID, msg.ChatTitle); err != nil {
		r.log.Debug("title cache refresh failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

func (r *Router) reply(ctx context.Context, msg *transport.Message, text string, opt *transport.SendOptions) {
	to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if err := r.client.SendText(ctx, to, text, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

func (r *Router) replyText(ctx context.Context, msg *transport.Message, text string) {
	r.reply(ctx, msg, text, nil)
}

// parseArgs splits the command tail into whitespace-separated tokens,
// dropping the leading "/command" itself.
func parseArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
