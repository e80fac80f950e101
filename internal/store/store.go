// Package store persists the append-only log of obfuscated messages.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"veery/internal/cipher"
)

var ErrUnavailable = errors.New("message store unavailable")

func newRecordID() string {
	return uuid.NewString()
}

// Record is a stored message. Sender is always a resolved username;
// Recipient is whatever the caller named, resolved or not. Records are
// immutable once appended.
type Record struct {
	ID        string         `json:"id"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Payload   cipher.Payload `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// Draft is a record before the store has assigned its id.
type Draft struct {
	Sender    string
	Recipient string
	Payload   cipher.Payload
	Timestamp int64
}

// MessageStore is the append-only message log. Every Append creates a new
// record, identical content included; all queries return insertion order.
type MessageStore interface {
	Append(ctx context.Context, d Draft) (*Record, error)
	FindByRecipient(ctx context.Context, recipient string) ([]Record, error)
	FindBySender(ctx context.Context, sender string) ([]Record, error)
	// FindBetween is directional: sender==sender AND recipient==recipient,
	// never the reversed pair.
	FindBetween(ctx context.Context, sender, recipient string) ([]Record, error)
	FindAll(ctx context.Context) ([]Record, error)
}
