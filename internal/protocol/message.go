// Package protocol defines the websocket wire structures. Sender identity is
// asserted per event via the userId field, not bound to the connection.
package protocol

import "veery/internal/store"

// Inbound is one message event received on a realtime connection.
type Inbound struct {
	UserID    string `json:"userId"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// Broadcast wraps a stored record for fanout to the other open sessions.
type Broadcast struct {
	Type  string       `json:"type"`
	Block store.Record `json:"block"`
}

// ErrorReply is sent back to the originating session only.
type ErrorReply struct {
	Error string `json:"error"`
}
