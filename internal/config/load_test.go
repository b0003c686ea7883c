package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validJSON = `{
  "telegram": {"token": "123:abc", "poll_timeout": "15s"},
  "owner": {"user_id": 42, "username": "Boss"},
  "storage": {"path": "./test.db"},
  "broadcast": {"send_gap": "50ms", "retry_grace": "500ms"},
  "jackpot": {"reveal_delay": "1.5s"}
}`

func TestParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json", validJSON)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Owner.UserID != 42 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := DurationOr(cfg.Jackpot.RevealDelay, 0); got != 1500*time.Millisecond {
		t.Fatalf("reveal delay = %v", got)
	}
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
owner:
  username: Boss
`)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Owner.Username != "Boss" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.json", `{"telegram": {"token": "x", "typo_field": 1}}`)
	if _, err := Parse(path); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(c *Config) {}, ok: true},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }},
		{name: "missing owner", mutate: func(c *Config) { c.Owner = OwnerConfig{} }},
		{name: "bad duration", mutate: func(c *Config) { c.Broadcast.SendGap = "soon" }},
		{name: "owner by username only", mutate: func(c *Config) { c.Owner.UserID = 0 }, ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{Token: "x"},
				Owner:    OwnerConfig{UserID: 1, Username: "u"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnvOverridesToken(t *testing.T) {
	t.Setenv("SLOTBOT_TOKEN", "999:env")
	path := writeConfig(t, "config.json", validJSON)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}
