package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"slotbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store, creating the schema when missing.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertContact applies the patch in a single statement. Each column is
// paired with an "apply" flag so kept fields keep their stored value while
// set/cleared fields take the inserted value (NULL on clear). The whole
// row changes atomically or not at all.
func (s *sqliteStore) UpsertContact(ctx context.Context, chatID int64, patch ContactPatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(chat_id, username, user_id, name) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   username = CASE WHEN ? THEN excluded.username ELSE contacts.username END,
		   user_id  = CASE WHEN ? THEN excluded.user_id  ELSE contacts.user_id  END,
		   name     = CASE WHEN ? THEN excluded.name     ELSE contacts.name     END`,
		chatID,
		stringArg(patch.Username), int64Arg(patch.UserID), stringArg(patch.Name),
		applies(patch.Username.Op), applies(patch.UserID.Op), applies(patch.Name.Op),
	)
	return err
}

func (s *sqliteStore) GetContact(ctx context.Context, chatID int64) (ContactRecord, bool, error) {
	var (
		rec      = ContactRecord{ChatID: chatID}
		username sql.NullString
		userID   sql.NullInt64
		name     sql.NullString
		title    sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, user_id, name, group_title, paid FROM contacts WHERE chat_id = ?`,
		chatID,
	).Scan(&username, &userID, &name, &title, &rec.Paid)
	if errors.Is(err, sql.ErrNoRows) {
		return ContactRecord{}, false, nil
	}
	if err != nil {
		return ContactRecord{}, false, err
	}
	rec.Username = username.String
	rec.UserID = userID.Int64
	rec.Name = name.String
	rec.Title = title.String
	return rec, true, nil
}

func (s *sqliteStore) DeleteContact(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE chat_id = ?`, chatID)
	return err
}

func (s *sqliteStore) SetPaid(ctx context.Context, chatID int64, paid bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(chat_id, paid) VALUES(?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET paid = excluded.paid`,
		chatID, boolInt(paid),
	)
	return err
}

func (s *sqliteStore) GetPaid(ctx context.Context, chatID int64) (bool, error) {
	var paid bool
	err := s.db.QueryRowContext(ctx, `SELECT paid FROM contacts WHERE chat_id = ?`, chatID).Scan(&paid)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return paid, nil
}

func (s *sqliteStore) ListUnpaid(ctx context.Context) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, COALESCE(group_title, CAST(chat_id AS TEXT))
		 FROM contacts WHERE COALESCE(paid, 0) = 0 ORDER BY chat_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ChatID, &r.Title); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetGroupTitle(ctx context.Context, chatID int64, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(chat_id, group_title) VALUES(?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET group_title = excluded.group_title`,
		chatID, nullStr(title),
	)
	return err
}

func (s *sqliteStore) ListChats(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM contacts ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func applies(op FieldOp) int {
	if op == FieldKeep {
		return 0
	}
	return 1
}

func stringArg(f StringField) any {
	if f.Op == FieldSet && strings.TrimSpace(f.Value) != "" {
		return f.Value
	}
	return nil
}

func int64Arg(f Int64Field) any {
	if f.Op == FieldSet && f.Value != 0 {
		return f.Value
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
