package complaints

import (
	"context"
	"fmt"
	"sync"

	"complaintdesk/core/notify"
)

// memRepo keeps complaints in memory for service tests.
type memRepo struct {
	mu      sync.Mutex
	items   []*Complaint
	outbox  []notify.Intent
	seq     int
	failErr error
}

func (m *memRepo) LoadAll(ctx context.Context) ([]Complaint, error) { return m.List(ctx) }

func (m *memRepo) SaveAll(_ context.Context, items []Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = m.items[:0]
	for i := range items {
		m.items = append(m.items, items[i].Clone())
	}
	return nil
}

func (m *memRepo) Insert(_ context.Context, c *Complaint, intents []notify.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for {
		m.seq++
		id := fmt.Sprintf("c%d", m.seq)
		if m.find(id) == nil {
			c.ID = id
			break
		}
	}
	for i := range intents {
		intents[i].ComplaintID = c.ID
	}
	m.items = append(m.items, c.Clone())
	m.outbox = append(m.outbox, intents...)
	return nil
}

func (m *memRepo) Append(_ context.Context, c *Complaint, _ LogEntry, expectedVersion int, intents []notify.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for i, cur := range m.items {
		if cur.ID != c.ID {
			continue
		}
		if cur.Version != expectedVersion {
			return ErrConflict
		}
		m.items[i] = c.Clone()
		m.outbox = append(m.outbox, intents...)
		return nil
	}
	return ErrNotFound
}

func (m *memRepo) Get(_ context.Context, id string) (*Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(id).Clone(), nil
}

func (m *memRepo) List(_ context.Context) ([]Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Complaint, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, *c.Clone())
	}
	return out, nil
}

func (m *memRepo) find(id string) *Complaint {
	for _, c := range m.items {
		if c.ID == id {
			return c
		}
	}
	return nil
}
