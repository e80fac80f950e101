package store

import (
	"context"
	"sync"
)

// Memory is an in-process MessageStore. It backs unit tests and the
// store=memory configuration; contents live for the process only.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, d Draft) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{
		ID:        newRecordID(),
		Sender:    d.Sender,
		Recipient: d.Recipient,
		Payload:   d.Payload,
		Timestamp: d.Timestamp,
	}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *Memory) FindByRecipient(ctx context.Context, recipient string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Recipient == recipient }), nil
}

func (m *Memory) FindBySender(ctx context.Context, sender string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Sender == sender }), nil
}

func (m *Memory) FindBetween(ctx context.Context, sender, recipient string) ([]Record, error) {
	return m.filter(func(r Record) bool {
		return r.Sender == sender && r.Recipient == recipient
	}), nil
}

func (m *Memory) FindAll(ctx context.Context) ([]Record, error) {
	return m.filter(func(Record) bool { return true }), nil
}

func (m *Memory) filter(keep func(Record) bool) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
