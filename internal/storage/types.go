package storage

import (
	"context"
	"strconv"
	"time"
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// ContactRecord is one stored row. Zero values mean "unset": an absent row
// is semantically identical to a zero record with Paid=false.
type ContactRecord struct {
	ChatID   int64
	Username string // public contact handle, without '@'
	UserID   int64  // notifier user id; also the identity-form contact
	Name     string // cached display name for UserID
	Title    string // cached chat title
	Paid     bool
}

type ContactKind int

const (
	ContactNone ContactKind = iota
	ContactHandle
	ContactUser
)

// Contact is the tagged view of the record's contact columns. The handle
// form takes precedence when both are populated; in that state UserID acts
// as the notifier only.
type Contact struct {
	Kind   ContactKind
	Handle string
	UserID int64
	Name   string
}

func (r ContactRecord) Contact() Contact {
	switch {
	case r.Username != "":
		return Contact{Kind: ContactHandle, Handle: r.Username}
	case r.UserID != 0:
		return Contact{Kind: ContactUser, UserID: r.UserID, Name: r.Name}
	default:
		return Contact{Kind: ContactNone}
	}
}

// FieldOp describes what an upsert does to one column.
type FieldOp int

const (
	FieldKeep  FieldOp = iota // leave the stored value as-is
	FieldSet                  // write the supplied value
	FieldClear                // write NULL
)

type StringField struct {
	Op    FieldOp
	Value string
}

type Int64Field struct {
	Op    FieldOp
	Value int64
}

func SetString(v string) StringField { return StringField{Op: FieldSet, Value: v} }
func ClearString() StringField       { return StringField{Op: FieldClear} }

func SetInt64(v int64) Int64Field { return Int64Field{Op: FieldSet, Value: v} }
func ClearInt64() Int64Field      { return Int64Field{Op: FieldClear} }

// ContactPatch is a partial update of the contact columns. Zero-valued
// fields are kept, so callers only name what they change.
type ContactPatch struct {
	Username StringField
	UserID   Int64Field
	Name     StringField
}

// Recipient is one broadcast target.
type Recipient struct {
	ChatID int64
	Title  string
}

func (r Recipient) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return strconv.FormatInt(r.ChatID, 10)
}

// Store is the persistence API consumed by commands, broadcast and jackpot.
type Store interface {
	UpsertContact(ctx context.Context, chatID int64, patch ContactPatch) error
	GetContact(ctx context.Context, chatID int64) (ContactRecord, bool, error)
	DeleteContact(ctx context.Context, chatID int64) error

	SetPaid(ctx context.Context, chatID int64, paid bool) error
	GetPaid(ctx context.Context, chatID int64) (bool, error)
	ListUnpaid(ctx context.Context) ([]Recipient, error)

	SetGroupTitle(ctx context.Context, chatID int64, title string) error
	ListChats(ctx context.Context) ([]int64, error)

	Close() error
}
