package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLite stores user records in SQLite.
type SQLite struct {
	db *sql.DB
}

// NewSQLite initializes the users table if it doesn't already exist.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS users (
		"id" TEXT NOT NULL PRIMARY KEY,
		"username" TEXT NOT NULL UNIQUE,
		"credential" TEXT NOT NULL);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("create users table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) ResolveByID(ctx context.Context, id string) (*User, error) {
	return s.resolve(ctx, `SELECT id, username, credential FROM users WHERE id = ?`, id)
}

func (s *SQLite) ResolveByUsername(ctx context.Context, username string) (*User, error) {
	return s.resolve(ctx, `SELECT id, username, credential FROM users WHERE username = ?`, username)
}

func (s *SQLite) resolve(ctx context.Context, querySQL string, arg string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, querySQL, arg).Scan(&u.ID, &u.Username, &u.Credential)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLite) Create(ctx context.Context, username, credential string) (*User, error) {
	if username == "" || credential == "" {
		return nil, ErrValidation
	}

	u := &User{ID: uuid.NewString(), Username: username, Credential: credential}
	insertSQL := `INSERT INTO users (id, username, credential) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, insertSQL, u.ID, u.Username, u.Credential); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLite) VerifyCredential(ctx context.Context, username, credential string) (*User, error) {
	u, err := s.ResolveByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if u.Credential != credential {
		return nil, ErrInvalidCredential
	}
	return u, nil
}

func (s *SQLite) UpdateCredential(ctx context.Context, username, current, next string) error {
	u, err := s.ResolveByUsername(ctx, username)
	if err != nil {
		return ErrNotFound
	}
	if u.Credential != current {
		return ErrInvalidCredential
	}

	updateSQL := `UPDATE users SET credential = ? WHERE username = ?`
	if _, err := s.db.ExecContext(ctx, updateSQL, next, username); err != nil {
		return err
	}
	return nil
}

func (s *SQLite) All(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, credential FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Credential); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
