// Package relay orchestrates the message pipeline: resolve the sender,
// obfuscate the content, persist the record, fan it out to the other open
// sessions.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"veery/internal/cipher"
	"veery/internal/directory"
	"veery/internal/metrics"
	"veery/internal/protocol"
	"veery/internal/store"
)

type Relay struct {
	directory directory.Directory
	store     store.MessageStore
	registry  *Registry
	log       logrus.FieldLogger
}

func New(dir directory.Directory, st store.MessageStore, reg *Registry, log logrus.FieldLogger) *Relay {
	return &Relay{
		directory: dir,
		store:     st,
		registry:  reg,
		log:       log,
	}
}

// Registry returns the session registry the relay fans out through.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Submit runs one message through the pipeline and returns the stored
// record. Both ingress surfaces call it: the websocket path passes its own
// session as origin and the record is broadcast to every other open session,
// unfiltered by the recipient field; the synchronous path passes a nil
// origin and no broadcast happens.
//
// An unresolvable sender aborts with ErrUnknownSender before any write. A
// failed append aborts before any broadcast, so a record is never seen by a
// peer unless it is already persisted.
func (r *Relay) Submit(ctx context.Context, senderRef, recipient, plaintext string, origin Session) (*store.Record, error) {
	if senderRef == "" || recipient == "" {
		return nil, ErrValidation
	}

	sender, err := r.directory.ResolveByID(ctx, senderRef)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrUnknownSender
		}
		// a directory fault is not an unknown sender; let it surface as one
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	payload, err := cipher.Encode(plaintext)
	if err != nil {
		return nil, err
	}

	rec, err := r.store.Append(ctx, store.Draft{
		Sender:    sender.Username,
		Recipient: recipient,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	ingress := "http"
	if origin != nil {
		ingress = "ws"
		r.registry.BroadcastExcept(origin, protocol.Broadcast{Type: "message", Block: *rec})
	}
	metrics.MessagesRelayed.WithLabelValues(ingress).Inc()

	r.log.WithFields(logrus.Fields{
		"sender":    rec.Sender,
		"recipient": rec.Recipient,
		"ingress":   ingress,
	}).Debug("message relayed")

	return rec, nil
}
