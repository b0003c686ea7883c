// Package auth decides who may change a chat's configuration and who the
// bot owner is. The two checks are deliberately separate: admin status is
// resolved per chat through the platform, owner status comes from config
// and gates broadcast and paid-flag mutation only.
package auth

import (
	"context"
	"strings"
	"sync"

	"slotbot/internal/transport"
	"slotbot/pkg/logx"
)

// RoleLookup is the slice of the transport client the resolver needs.
type RoleLookup interface {
	MemberRole(ctx context.Context, chatID, userID int64) (transport.Role, error)
}

// OwnerConfig identifies the single privileged operator. UserID wins when
// set; otherwise the username is matched case-insensitively.
type OwnerConfig struct {
	UserID   int64
	Username string
}

type Resolver struct {
	mu    sync.RWMutex
	owner OwnerConfig

	roles RoleLookup
	log   logx.Logger
}

func NewResolver(owner OwnerConfig, roles RoleLookup, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{owner: owner, roles: roles, log: log}
}

// SetOwner swaps the owner identity (config hot reload).
func (r *Resolver) SetOwner(owner OwnerConfig) {
	r.mu.Lock()
	r.owner = owner
	r.mu.Unlock()
}

// IsAuthorized reports whether the message sender may mutate configuration
// for targetChatID (0 means "the current chat, if it is a group").
//
// A message posted "as the group" (anonymous admin) is authorized without
// a role lookup: Telegram already restricted that posting mode to admins.
// Any lookup failure denies rather than crashes.
func (r *Resolver) IsAuthorized(ctx context.Context, msg *transport.Message, targetChatID int64) bool {
	if msg == nil {
		return false
	}

	if msg.SenderChatID != 0 && msg.SenderChatID == msg.ChatID && msg.ChatType.IsGroup() {
		return true
	}

	chatID := targetChatID
	if chatID == 0 && msg.ChatType.IsGroup() {
		chatID = msg.ChatID
	}
	if chatID == 0 || msg.FromID == 0 {
		return false
	}

	role, err := r.roles.MemberRole(ctx, chatID, msg.FromID)
	if err != nil {
		r.log.Warn("member role lookup failed",
			logx.Int64("chat_id", chatID),
			logx.Int64("user_id", msg.FromID),
			logx.Err(err))
		return false
	}
	return role == transport.RoleCreator || role == transport.RoleAdministrator
}

// IsOwner reports whether the identity matches the configured owner.
func (r *Resolver) IsOwner(userID int64, username string) bool {
	r.mu.RLock()
	owner := r.owner
	r.mu.RUnlock()

	if owner.UserID != 0 && userID == owner.UserID {
		return true
	}
	want := strings.TrimPrefix(owner.Username, "@")
	return want != "" && username != "" && strings.EqualFold(username, want)
}
