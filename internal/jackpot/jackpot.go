// Package jackpot reacts to slot-machine dice results: the winning value
// gets a public reply that surfaces the chat's configured contact, plus an
// optional private notice to the notifier.
package jackpot

import (
	"context"
	"fmt"
	"time"

	"slotbot/internal/storage"
	"slotbot/internal/transport"
	"slotbot/pkg/logx"
	"slotbot/pkg/tgui"
)

// Telegram's 🎰 dice rolls a value in [1,64]; 64 is triple-seven and
// {1, 22, 43} are the three-of-a-kind combinations below it.
const jackpotValue = 64

var partialValues = map[int]bool{1: true, 22: true, 43: true}

type Sleeper func(ctx context.Context, d time.Duration)

// ContactReader is the slice of the store the handler reads.
type ContactReader interface {
	GetContact(ctx context.Context, chatID int64) (storage.ContactRecord, bool, error)
}

// Transport is the outbound slice the handler drives.
type Transport interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error
	SendDM(ctx context.Context, userID int64, text string) error
}

type Config struct {
	// RevealDelay holds the reply back until the client-side slot
	// animation has finished. Presentation only.
	RevealDelay time.Duration
}

type Handler struct {
	cfg    Config
	store  ContactReader
	client Transport
	sleep  Sleeper
	log    logx.Logger
}

func New(cfg Config, store ContactReader, client Transport, log logx.Logger) *Handler {
	if cfg.RevealDelay < 0 {
		cfg.RevealDelay = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{cfg: cfg, store: store, client: client, sleep: sleepCtx, log: log}
}

// SetSleeper replaces the wait function. Tests use this for a fake clock.
func (h *Handler) SetSleeper(s Sleeper) { h.sleep = s }

// HandleDice classifies the roll and reacts. Errors never propagate to the
// transport loop; every path resolves to a sent message or a log line.
func (h *Handler) HandleDice(ctx context.Context, msg *transport.Message) {
	if msg == nil || msg.Dice == nil {
		return
	}
	log := h.log.With(logx.Int64("chat_id", msg.ChatID), logx.Int("value", msg.Dice.Value))

	switch {
	case msg.Dice.Value == jackpotValue:
		h.sleep(ctx, h.cfg.RevealDelay)
		h.announceJackpot(ctx, msg, log)
	case partialValues[msg.Dice.Value]:
		to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
		text := fmt.Sprintf("%s got 3 in a row! So close, try again!", displayUser(msg))
		if err := h.client.SendText(ctx, to, text, nil); err != nil {
			log.Warn("partial-match reply failed", logx.Err(err))
		}
	default:
		log.Debug("dice roll", logx.String("emoji", msg.Dice.Emoji))
	}
}

func (h *Handler) announceJackpot(ctx context.Context, msg *transport.Message, log logx.Logger) {
	var (
		rec storage.ContactRecord
		ok  bool
		err error
	)
	rec, ok, err = h.store.GetContact(ctx, msg.ChatID)
	if err != nil {
		// Announce without the call-to-action rather than stay silent.
		log.Error("contact lookup failed", logx.Err(err))
	}

	winner := displayUser(msg)
	text := fmt.Sprintf("%s just hit the JACKPOT! 777!", winner)
	opt := &transport.SendOptions{DisablePreview: true}

	if ok {
		switch c := rec.Contact(); c.Kind {
		case storage.ContactHandle:
			text += fmt.Sprintf("\n\nMessage @%s to claim your prize!", c.Handle)
			opt.URLButton = &transport.URLButton{
				Text: "Message @" + c.Handle,
				URL:  tgui.DeepLink(c.Handle),
			}
		case storage.ContactUser:
			name := c.Name
			if name == "" {
				name = "this user"
			}
			text = tgui.Esc(text).String() +
				"\n\nPlease contact " + tgui.Mention(name, c.UserID).String() + " to claim your prize!"
			opt.ParseMode = transport.ModeHTML
		}
	}

	to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if err := h.client.SendText(ctx, to, text, opt); err != nil {
		log.Error("jackpot reply failed", logx.Err(err))
		return
	}

	if ok && rec.UserID != 0 {
		notice := fmt.Sprintf("%s just won 777 in %q! They will message you.", winner, chatLabel(msg, rec))
		if err := h.client.SendDM(ctx, rec.UserID, notice); err != nil {
			if transport.IsForbidden(err) {
				// Notifier never started the bot or blocked it; nothing to do.
				return
			}
			log.Warn("notifier DM failed", logx.Int64("user_id", rec.UserID), logx.Err(err))
		}
	}
}

func displayUser(msg *transport.Message) string {
	if msg.FromUsername != "" {
		return "@" + msg.FromUsername
	}
	return fmt.Sprintf("User %d", msg.FromID)
}

func chatLabel(msg *transport.Message, rec storage.ContactRecord) string {
	if msg.ChatTitle != "" {
		return msg.ChatTitle
	}
	if rec.Title != "" {
		return rec.Title
	}
	return fmt.Sprintf("chat %d", msg.ChatID)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
