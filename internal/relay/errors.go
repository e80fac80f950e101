package relay

import "errors"

var (
	// ErrUnknownSender means the sender reference did not resolve; the
	// submission aborted before any write or broadcast.
	ErrUnknownSender = errors.New("invalid user ID")

	// ErrValidation means the submission triple was malformed and was
	// rejected before any resolution.
	ErrValidation = errors.New("sender and recipient are required")
)
