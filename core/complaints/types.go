package complaints

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusForwarded Status = "forwarded"
	StatusResolved  Status = "resolved"
	StatusRejected  Status = "rejected"
)

func (s Status) Terminal() bool { return s == StatusResolved || s == StatusRejected }

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusForwarded, StatusResolved, StatusRejected:
		return true
	}
	return false
}

type Action string

const (
	ActionCreated   Action = "created"
	ActionForwarded Action = "forwarded"
	ActionResolved  Action = "resolved"
	ActionRejected  Action = "rejected"
)

// LogEntry records one transition. Handler is the current handler once the
// entry has been applied.
type LogEntry struct {
	Action    Action    `json:"action"`
	UpdatedBy string    `json:"updated_by"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
	Handler   string    `json:"handler"`
}

type Complaint struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	CreatedBy      string     `json:"created_by"`
	AssignedTo     string     `json:"assigned_to"`
	CurrentHandler string     `json:"current_handler"`
	Status         Status     `json:"status"`
	ResolutionNote string     `json:"resolution_note"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	Logs           []LogEntry `json:"logs"`
	Version        int        `json:"version"`
}

// Clone returns a deep copy so callers can mutate without touching c.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.RejectedAt = cloneTime(c.RejectedAt)
	out.Logs = append([]LogEntry(nil), c.Logs...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
