// Package broadcast delivers one message to every chat not marked paid.
//
// The run is strictly sequential: no recipient is attempted before the
// previous attempt resolves, so the bot never bursts against Telegram's
// flood control. There is no cancellation checkpointing; a started run
// either finishes or dies with the process.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"slotbot/internal/storage"
	"slotbot/internal/transport"
	"slotbot/pkg/logx"
)

// RecipientSource is the slice of the store the engine reads.
type RecipientSource interface {
	ListUnpaid(ctx context.Context) ([]storage.Recipient, error)
}

// Sender is the slice of the transport client the engine drives.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error
}

type Failure struct {
	ChatID int64
	Title  string
	Reason string
}

// Summary aggregates one run. Partial failures surface only here; nothing
// upstream retries beyond the engine's own policy.
type Summary struct {
	Sent     int
	Skipped  int
	Failures []Failure
}

func (s Summary) Total() int { return s.Sent + s.Skipped + len(s.Failures) }

// Report renders the owner-facing result line.
func (s Summary) Report() string {
	if s.Total() == 0 {
		return "No unpaid groups found."
	}
	out := fmt.Sprintf("Sent to %d unpaid groups. Skipped: %d. Failures: %d",
		s.Sent, s.Skipped, len(s.Failures))
	if len(s.Failures) > 0 {
		out += "\nSome groups failed (bot removed, topics-only, etc.)."
	}
	return out
}

type Config struct {
	// SendGap is the courtesy delay between successful sends, independent
	// of retry backoff.
	SendGap time.Duration
	Policy  Policy
}

type Engine struct {
	cfg    Config
	source RecipientSource
	sender Sender
	sleep  Sleeper
	log    logx.Logger
}

func New(cfg Config, source RecipientSource, sender Sender, log logx.Logger) *Engine {
	if cfg.SendGap <= 0 {
		cfg.SendGap = 50 * time.Millisecond
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultPolicy()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{cfg: cfg, source: source, sender: sender, sleep: SleepFunc, log: log}
}

// SetSleeper replaces the wait function. Tests use this for a fake clock.
func (e *Engine) SetSleeper(s Sleeper) { e.sleep = s }

// Run enumerates the unpaid chats and delivers text to each in order.
// Rate-limit errors get one retry after the mandated wait; forbidden
// targets are skipped; anything else is recorded as a failure.
func (e *Engine) Run(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	recipients, err := e.source.ListUnpaid(ctx)
	if err != nil {
		return sum, fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return sum, nil
	}

	e.log.Info("broadcast started", logx.Int("recipients", len(recipients)))
	opt := &transport.SendOptions{DisablePreview: true}

	for _, r := range recipients {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		to := transport.ChatTarget{ChatID: r.ChatID}
		err := e.cfg.Policy.Do(ctx, e.sleep, func() error {
			return e.sender.SendText(ctx, to, text, opt)
		})
		switch {
		case err == nil:
			sum.Sent++
			e.sleep(ctx, e.cfg.SendGap)
		case transport.IsForbidden(err):
			sum.Skipped++
			e.log.Debug("recipient skipped", logx.Int64("chat_id", r.ChatID), logx.Err(err))
		default:
			sum.Failures = append(sum.Failures, Failure{ChatID: r.ChatID, Title: r.Label(), Reason: err.Error()})
			e.log.Warn("delivery failed", logx.Int64("chat_id", r.ChatID), logx.Err(err))
		}
	}

	e.log.Info("broadcast finished",
		logx.Int("sent", sum.Sent),
		logx.Int("skipped", sum.Skipped),
		logx.Int("failed", len(sum.Failures)))
	return sum, nil
}
