package auth

import (
	"context"
	"errors"
	"testing"

	"slotbot/internal/transport"
	"slotbot/pkg/logx"
)

type fakeRoles struct {
	role transport.Role
	err  error

	calls int
}

func (f *fakeRoles) MemberRole(ctx context.Context, chatID, userID int64) (transport.Role, error) {
	f.calls++
	return f.role, f.err
}

func groupMsg(chatID, fromID int64) *transport.Message {
	return &transport.Message{ChatID: chatID, ChatType: transport.ChatSuperGroup, FromID: fromID}
}

func TestIsAuthorized(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		msg    *transport.Message
		target int64
		roles  fakeRoles
		want   bool
		lookup bool // whether a role lookup is expected
	}{
		{
			name: "anonymous admin bypasses role lookup",
			msg: &transport.Message{
				ChatID: 1, SenderChatID: 1,
				ChatType: transport.ChatSuperGroup,
			},
			roles: fakeRoles{role: transport.RoleMember},
			want:  true,
		},
		{
			name: "sender chat of another chat is not a bypass",
			msg: &transport.Message{
				ChatID: 1, SenderChatID: 2, FromID: 9,
				ChatType: transport.ChatSuperGroup,
			},
			roles:  fakeRoles{role: transport.RoleMember},
			want:   false,
			lookup: true,
		},
		{
			name: "private chat without target denies",
			msg:  &transport.Message{ChatID: 5, ChatType: transport.ChatPrivate, FromID: 9},
			want: false,
		},
		{
			name:   "private chat with explicit target checks role",
			msg:    &transport.Message{ChatID: 5, ChatType: transport.ChatPrivate, FromID: 9},
			target: 77,
			roles:  fakeRoles{role: transport.RoleAdministrator},
			want:   true,
			lookup: true,
		},
		{
			name:   "creator allowed",
			msg:    groupMsg(1, 9),
			roles:  fakeRoles{role: transport.RoleCreator},
			want:   true,
			lookup: true,
		},
		{
			name:   "plain member denied",
			msg:    groupMsg(1, 9),
			roles:  fakeRoles{role: transport.RoleMember},
			want:   false,
			lookup: true,
		},
		{
			name:   "lookup error denies",
			msg:    groupMsg(1, 9),
			roles:  fakeRoles{err: errors.New("api down")},
			want:   false,
			lookup: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(OwnerConfig{}, &tt.roles, logx.Nop())
			got := r.IsAuthorized(context.Background(), tt.msg, tt.target)
			if got != tt.want {
				t.Fatalf("IsAuthorized = %v, want %v", got, tt.want)
			}
			if tt.lookup && tt.roles.calls == 0 {
				t.Fatal("expected a role lookup")
			}
			if !tt.lookup && tt.roles.calls != 0 {
				t.Fatal("unexpected role lookup")
			}
		})
	}
}

func TestIsOwner(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		owner    OwnerConfig
		userID   int64
		username string
		want     bool
	}{
		{name: "by id", owner: OwnerConfig{UserID: 7}, userID: 7, want: true},
		{name: "wrong id", owner: OwnerConfig{UserID: 7}, userID: 8, want: false},
		{name: "id miss falls through to handle", owner: OwnerConfig{UserID: 7, Username: "Boss"}, userID: 8, username: "boss", want: true},
		{name: "handle case-insensitive", owner: OwnerConfig{Username: "Boss"}, username: "bOSS", want: true},
		{name: "configured with at-sign", owner: OwnerConfig{Username: "@Boss"}, username: "boss", want: true},
		{name: "empty owner denies all", owner: OwnerConfig{}, userID: 1, username: "x", want: false},
		{name: "empty sender handle denies", owner: OwnerConfig{Username: "Boss"}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.owner, &fakeRoles{}, logx.Nop())
			if got := r.IsOwner(tt.userID, tt.username); got != tt.want {
				t.Fatalf("IsOwner = %v, want %v", got, tt.want)
			}
		})
	}
}
