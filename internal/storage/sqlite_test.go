package storage

import (
	"context"
	"path/filepath"
	"testing"

	"slotbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "contacts.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertPreservesUnpatchedFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertContact(ctx, 10, ContactPatch{Username: SetString("alice")}); err != nil {
		t.Fatalf("upsert username: %v", err)
	}
	if err := st.UpsertContact(ctx, 10, ContactPatch{UserID: SetInt64(42), Name: SetString("Bob")}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	rec, ok, err := st.GetContact(ctx, 10)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if rec.Username != "alice" {
		t.Fatalf("username lost: %q", rec.Username)
	}
	if rec.UserID != 42 || rec.Name != "Bob" {
		t.Fatalf("user fields wrong: id=%d name=%q", rec.UserID, rec.Name)
	}
}

func TestNotifierLifecycleKeepsHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertContact(ctx, 20, ContactPatch{Username: SetString("carol")}); err != nil {
		t.Fatalf("set handle: %v", err)
	}
	// set-notifier: only the user id changes.
	if err := st.UpsertContact(ctx, 20, ContactPatch{UserID: SetInt64(7)}); err != nil {
		t.Fatalf("set notifier: %v", err)
	}
	rec, _, err := st.GetContact(ctx, 20)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Username != "carol" || rec.UserID != 7 {
		t.Fatalf("after set-notifier: username=%q user_id=%d", rec.Username, rec.UserID)
	}

	// unset-notifier: clears user id and name, keeps handle.
	if err := st.UpsertContact(ctx, 20, ContactPatch{UserID: ClearInt64(), Name: ClearString()}); err != nil {
		t.Fatalf("unset notifier: %v", err)
	}
	rec, _, err = st.GetContact(ctx, 20)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Username != "carol" {
		t.Fatalf("handle lost on unset-notifier: %q", rec.Username)
	}
	if rec.UserID != 0 || rec.Name != "" {
		t.Fatalf("notifier not cleared: id=%d name=%q", rec.UserID, rec.Name)
	}
}

func TestDeleteContactDropsPaid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertContact(ctx, 30, ContactPatch{Username: SetString("dan")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.SetPaid(ctx, 30, true); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	if paid, _ := st.GetPaid(ctx, 30); !paid {
		t.Fatal("paid not set")
	}

	if err := st.DeleteContact(ctx, 30); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.GetContact(ctx, 30); ok {
		t.Fatal("record survived delete")
	}
	// The paid flag lives in the same row, so a delete resets it too.
	if paid, err := st.GetPaid(ctx, 30); err != nil || paid {
		t.Fatalf("paid after delete: %v err=%v", paid, err)
	}
}

func TestGetPaidDefaultsFalse(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	paid, err := st.GetPaid(context.Background(), 999)
	if err != nil {
		t.Fatalf("get paid: %v", err)
	}
	if paid {
		t.Fatal("absent row should read unpaid")
	}
}

func TestListUnpaidTitleFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertContact(ctx, 100, ContactPatch{Username: SetString("a")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.SetGroupTitle(ctx, 200, "The Lounge"); err != nil {
		t.Fatalf("set title: %v", err)
	}
	if err := st.SetPaid(ctx, 300, true); err != nil {
		t.Fatalf("set paid: %v", err)
	}

	got, err := st.ListUnpaid(ctx)
	if err != nil {
		t.Fatalf("list unpaid: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 recipients, got %d: %+v", len(got), got)
	}
	if got[0].ChatID != 100 || got[0].Title != "100" {
		t.Fatalf("untitled row should fall back to id string: %+v", got[0])
	}
	if got[1].ChatID != 200 || got[1].Title != "The Lounge" {
		t.Fatalf("titled row wrong: %+v", got[1])
	}
}

func TestContactVariant(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rec  ContactRecord
		kind ContactKind
	}{
		{name: "empty", rec: ContactRecord{}, kind: ContactNone},
		{name: "handle", rec: ContactRecord{Username: "x"}, kind: ContactHandle},
		{name: "user", rec: ContactRecord{UserID: 5, Name: "N"}, kind: ContactUser},
		{name: "handle wins over user", rec: ContactRecord{Username: "x", UserID: 5}, kind: ContactHandle},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Contact().Kind; got != tt.kind {
				t.Fatalf("kind = %v, want %v", got, tt.kind)
			}
		})
	}
}
