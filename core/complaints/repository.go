package complaints

import (
	"context"

	"complaintdesk/core/notify"
)

// Repository persists complaints together with their outbox intents.
type Repository interface {
	LoadAll(ctx context.Context) ([]Complaint, error)
	// SaveAll replaces the whole collection, keeping slice order as creation order.
	SaveAll(ctx context.Context, items []Complaint) error
	// Insert assigns c.ID, stamps it onto intents and stores everything atomically.
	Insert(ctx context.Context, c *Complaint, intents []notify.Intent) error
	// Append stores c (already folded with entry) when the stored version still
	// equals expectedVersion, and returns ErrConflict otherwise.
	Append(ctx context.Context, c *Complaint, entry LogEntry, expectedVersion int, intents []notify.Intent) error
	// Get returns nil, nil when id is unknown.
	Get(ctx context.Context, id string) (*Complaint, error)
	List(ctx context.Context) ([]Complaint, error)
}

// Observer receives one call per mutator invocation.
type Observer interface {
	ObserveTransition(action Action, outcome string, seconds float64)
}
