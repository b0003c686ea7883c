// Package transport defines the platform-neutral types and the outbound
// client contract consumed by auth, broadcast and jackpot. The Telegram
// implementation lives in transport/telegram.
package transport

import "context"

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSuperGroup ChatType = "supergroup"
)

// IsGroup reports whether the chat is a group-like conversation.
func (t ChatType) IsGroup() bool {
	return t == ChatGroup || t == ChatSuperGroup
}

type Role string

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleRestricted    Role = "restricted"
	RoleLeft          Role = "left"
	RoleKicked        Role = "kicked"
)

// Message is the inbound event shape handlers work with. The Telegram
// adapter fills it from a raw update; tests build it directly.
type Message struct {
	ChatID       int64
	ChatType     ChatType
	ChatTitle    string
	ThreadID     int
	FromID       int64
	FromUsername string
	Text         string

	// SenderChatID is non-zero when the message was posted "as the chat"
	// (anonymous admin or linked channel).
	SenderChatID int64

	ReplyTo *ReplyTarget
	Dice    *Dice
}

// ReplyTarget carries the bits of a replied-to message that commands use.
type ReplyTarget struct {
	UserID   int64
	UserName string
	Text     string
}

type Dice struct {
	Emoji string
	Value int
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool

	// URLButton attaches a single inline URL button when set.
	URLButton *URLButton
}

type URLButton struct {
	Text string
	URL  string
}

const ModeHTML = "HTML"

// Client is the outbound surface of the chat platform.
//
// Errors: implementations must return RateLimitedError for platform flood
// control, ErrForbidden (possibly wrapped) when the bot lost access to the
// target, and plain errors otherwise.
type Client interface {
	// SendText delivers text to a chat.
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// SendDM delivers a private message to a user.
	SendDM(ctx context.Context, userID int64, text string) error

	// MemberRole looks up the membership role of a user in a chat.
	MemberRole(ctx context.Context, chatID, userID int64) (Role, error)

	// ChatTitle fetches the current title of a chat.
	ChatTitle(ctx context.Context, chatID int64) (string, error)
}
