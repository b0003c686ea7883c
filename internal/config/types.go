// Package config loads and watches the bot configuration file.
//
// JSON is the canonical format; YAML configs are coerced to JSON so both
// share one strict decoder. All durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
package config

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Owner     OwnerConfig     `json:"owner"`
	Storage   StorageConfig   `json:"storage"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Jackpot   JackpotConfig   `json:"jackpot,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`

	// TitleRefreshCron schedules the periodic chat-title refresh.
	// Empty disables it; default is nightly.
	TitleRefreshCron string `json:"title_refresh_cron,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`

	// SendRatePerSec caps outbound API calls bot-wide.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

// OwnerConfig identifies the operator allowed to broadcast and set paid
// status. At least one of the two fields must be set.
type OwnerConfig struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type BroadcastConfig struct {
	// SendGap is the courtesy delay between successful sends.
	SendGap string `json:"send_gap,omitempty"`
	// RetryGrace is added on top of the server-mandated retry-after wait.
	RetryGrace string `json:"retry_grace,omitempty"`
}

type JackpotConfig struct {
	// RevealDelay holds the jackpot reply back until the slot animation
	// finishes client-side.
	RevealDelay string `json:"reveal_delay,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console *bool      `json:"console,omitempty"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks the parts the bot cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Owner.UserID == 0 && strings.TrimSpace(c.Owner.Username) == "" {
		return errors.New("owner.user_id or owner.username is required")
	}
	for _, d := range []struct {
		name, raw string
	}{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"broadcast.send_gap", c.Broadcast.SendGap},
		{"broadcast.retry_grace", c.Broadcast.RetryGrace},
		{"jackpot.reveal_delay", c.Jackpot.RevealDelay},
	} {
		if _, err := ParseDuration(d.raw, 0); err != nil {
			return errors.New(d.name + ": invalid duration " + d.raw)
		}
	}
	return nil
}

// ParseDuration parses a Go duration string, returning def when raw is
// empty. The error carries no context; callers name the field.
func ParseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

// DurationOr is ParseDuration with errors ignored, for already-validated
// configs.
func DurationOr(raw string, def time.Duration) time.Duration {
	d, err := ParseDuration(raw, def)
	if err != nil {
		return def
	}
	return d
}

func (c *Config) ConsoleLogging() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}
