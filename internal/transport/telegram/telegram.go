// Package telegram adapts telebot.v4 to the transport contract.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"slotbot/internal/transport"
	"slotbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration

	// SendRatePerSec caps outbound API calls across all chats.
	// Telegram allows ~30 messages/second bot-wide; stay under it.
	SendRatePerSec int
}

// Handler receives inbound updates already mapped to transport types.
type Handler interface {
	HandleCommand(ctx context.Context, cmd string, msg *transport.Message)
	HandleDice(ctx context.Context, msg *transport.Message)
}

// Command is a menu entry for the platform's command list.
type Command struct {
	Text        string
	Description string
}

type Bot struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	limiter *rate.Limiter

	ctx     context.Context
	handler Handler
}

func New(cfg Config, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 25
	}
	return &Bot{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Bind registers inbound routing. Must be called before Start.
func (b *Bot) Bind(h Handler, commands []string) {
	b.handler = h
	for _, cmd := range commands {
		cmd := cmd
		b.bot.Handle("/"+cmd, func(c tele.Context) error {
			m := c.Message()
			if m == nil || b.handler == nil {
				return nil
			}
			b.handler.HandleCommand(b.baseCtx(), cmd, mapMessage(m))
			return nil
		})
	}
	b.bot.Handle(tele.OnDice, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Dice == nil || b.handler == nil {
			return nil
		}
		b.handler.HandleDice(b.baseCtx(), mapMessage(m))
		return nil
	})
}

func (b *Bot) baseCtx() context.Context {
	if b.ctx != nil {
		return b.ctx
	}
	return context.Background()
}

// Start runs the long-poll loop until ctx is cancelled. It blocks.
func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx
	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		b.bot.Stop()
		close(stopped)
	}()
	b.log.Info("polling started")
	b.bot.Start()
	<-stopped
	b.log.Info("polling stopped")
}

// SetCommands publishes the command menu. Best-effort.
func (b *Bot) SetCommands(cmds []Command) error {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Text == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Text
		}
		out = append(out, tele.Command{Text: c.Text, Description: d})
	}
	return b.bot.SetCommands(out)
}

func (b *Bot) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	if opt.URLButton != nil {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL(opt.URLButton.Text, opt.URLButton.URL)))
		sendOpt.ReplyMarkup = markup
	}
	_, err := b.bot.Send(tele.ChatID(to.ChatID), text, sendOpt)
	return mapError(err)
}

func (b *Bot) SendDM(ctx context.Context, userID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.bot.Send(tele.ChatID(userID), text)
	return mapError(err)
}

func (b *Bot) MemberRole(ctx context.Context, chatID, userID int64) (transport.Role, error) {
	member, err := b.bot.ChatMemberOf(tele.ChatID(chatID), tele.ChatID(userID))
	if err != nil {
		return "", mapError(err)
	}
	return mapRole(member.Role), nil
}

func (b *Bot) ChatTitle(ctx context.Context, chatID int64) (string, error) {
	chat, err := b.bot.ChatByID(chatID)
	if err != nil {
		return "", mapError(err)
	}
	return chat.Title, nil
}

func mapMessage(m *tele.Message) *transport.Message {
	msg := &transport.Message{
		ChatID:    m.Chat.ID,
		ChatType:  mapChatType(m.Chat.Type),
		ChatTitle: m.Chat.Title,
		ThreadID:  m.ThreadID,
		Text:      m.Text,
	}
	if m.Sender != nil {
		msg.FromID = m.Sender.ID
		msg.FromUsername = m.Sender.Username
	}
	if m.SenderChat != nil {
		msg.SenderChatID = m.SenderChat.ID
	}
	if r := m.ReplyTo; r != nil {
		tgt := &transport.ReplyTarget{Text: r.Text}
		if r.Sender != nil {
			tgt.UserID = r.Sender.ID
			tgt.UserName = strings.TrimSpace(r.Sender.FirstName + " " + r.Sender.LastName)
		}
		msg.ReplyTo = tgt
	}
	if m.Dice != nil {
		msg.Dice = &transport.Dice{Emoji: string(m.Dice.Type), Value: m.Dice.Value}
	}
	return msg
}

func mapChatType(t tele.ChatType) transport.ChatType {
	switch t {
	case tele.ChatGroup:
		return transport.ChatGroup
	case tele.ChatSuperGroup:
		return transport.ChatSuperGroup
	default:
		return transport.ChatPrivate
	}
}

func mapRole(r tele.MemberStatus) transport.Role {
	switch r {
	case tele.Creator:
		return transport.RoleCreator
	case tele.Administrator:
		return transport.RoleAdministrator
	case tele.Member:
		return transport.RoleMember
	case tele.Restricted:
		return transport.RoleRestricted
	case tele.Kicked:
		return transport.RoleKicked
	default:
		return transport.RoleLeft
	}
}

// mapError converts telebot errors to the transport taxonomy:
// flood control becomes RateLimitedError, 403-class errors (kicked,
// blocked, never started) become ErrForbidden, the rest pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &transport.RateLimitedError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}
	var te *tele.Error
	if errors.As(err, &te) && te.Code == 403 {
		return errors.Join(transport.ErrForbidden, err)
	}
	return err
}
