package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"veery/internal/cipher"
)

// SQLite is the durable MessageStore. The payload column holds the JSON
// encoding of the cipher payload, so the stored record stays opaque the same
// way the wire record is. Insertion order is the implicit rowid.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) (*SQLite, error) {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS messages (
		"id" TEXT NOT NULL PRIMARY KEY,
		"sender" TEXT NOT NULL,
		"recipient" TEXT NOT NULL,
		"payload" TEXT NOT NULL,
		"timestamp" INTEGER NOT NULL);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("create messages table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, d Draft) (*Record, error) {
	rec := Record{
		ID:        newRecordID(),
		Sender:    d.Sender,
		Recipient: d.Recipient,
		Payload:   d.Payload,
		Timestamp: d.Timestamp,
	}

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	insertSQL := `INSERT INTO messages (id, sender, recipient, payload, timestamp) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, insertSQL, rec.ID, rec.Sender, rec.Recipient, string(payload), rec.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &rec, nil
}

func (s *SQLite) FindByRecipient(ctx context.Context, recipient string) ([]Record, error) {
	return s.query(ctx, `SELECT id, sender, recipient, payload, timestamp FROM messages WHERE recipient = ? ORDER BY rowid`, recipient)
}

func (s *SQLite) FindBySender(ctx context.Context, sender string) ([]Record, error) {
	return s.query(ctx, `SELECT id, sender, recipient, payload, timestamp FROM messages WHERE sender = ? ORDER BY rowid`, sender)
}

func (s *SQLite) FindBetween(ctx context.Context, sender, recipient string) ([]Record, error) {
	return s.query(ctx, `SELECT id, sender, recipient, payload, timestamp FROM messages WHERE sender = ? AND recipient = ? ORDER BY rowid`, sender, recipient)
}

func (s *SQLite) FindAll(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT id, sender, recipient, payload, timestamp FROM messages ORDER BY rowid`)
}

func (s *SQLite) query(ctx context.Context, querySQL string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Sender, &rec.Recipient, &payload, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var p cipher.Payload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, cipher.ErrMalformedPayload
		}
		rec.Payload = p
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return records, nil
}
