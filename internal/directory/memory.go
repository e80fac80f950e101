package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Directory for tests and the store=memory
// configuration.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*User
	byName map[string]*User
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*User),
		byName: make(map[string]*User),
	}
}

func (m *Memory) ResolveByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) ResolveByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) Create(ctx context.Context, username, credential string) (*User, error) {
	if username == "" || credential == "" {
		return nil, ErrValidation
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return nil, ErrDuplicateUsername
	}

	u := &User{ID: uuid.NewString(), Username: username, Credential: credential}
	m.byID[u.ID] = u
	m.byName[u.Username] = u
	cp := *u
	return &cp, nil
}

func (m *Memory) VerifyCredential(ctx context.Context, username, credential string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byName[username]
	if !ok || u.Credential != credential {
		return nil, ErrInvalidCredential
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdateCredential(ctx context.Context, username, current, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return ErrNotFound
	}
	if u.Credential != current {
		return ErrInvalidCredential
	}
	u.Credential = next
	return nil
}

func (m *Memory) All(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, *u)
	}
	return users, nil
}
