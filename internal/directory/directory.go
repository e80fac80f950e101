// Package directory is the user-record store: opaque ids, unique usernames,
// exact-match credentials. The relay treats it as an external collaborator
// and only ever touches ResolveByID.
package directory

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrValidation        = errors.New("username and credential cannot be empty")
)

// User is a registered account. Credential is an opaque secret compared
// byte-for-byte; it is never included in JSON responses.
type User struct {
	ID         string `json:"userId"`
	Username   string `json:"username"`
	Credential string `json:"-"`
}

type Directory interface {
	ResolveByID(ctx context.Context, id string) (*User, error)
	ResolveByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, username, credential string) (*User, error)
	VerifyCredential(ctx context.Context, username, credential string) (*User, error)
	UpdateCredential(ctx context.Context, username, current, next string) error
	All(ctx context.Context) ([]User, error)
}
