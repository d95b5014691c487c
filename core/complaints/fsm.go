package complaints

import (
	"strings"
	"time"
)

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionForwarded: StatusForwarded,
		ActionResolved:  StatusResolved,
		ActionRejected:  StatusRejected,
	},
	StatusForwarded: {
		ActionForwarded: StatusForwarded,
		ActionResolved:  StatusResolved,
		ActionRejected:  StatusRejected,
	},
}

// Next returns the status reached by applying action in from.
func Next(from Status, action Action) (Status, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", ErrInvalidTransition.withMessage("cannot %s a %s complaint", action, from)
	}
	return to, nil
}

// Apply folds one non-created entry into c. Version is left to the caller.
func Apply(c *Complaint, e LogEntry) error {
	to, err := Next(c.Status, e.Action)
	if err != nil {
		return err
	}
	if e.Action == ActionForwarded && strings.TrimSpace(e.Handler) == "" {
		return ErrValidation.withMessage("forward entry without handler")
	}
	ts := e.Timestamp
	c.Status = to
	c.UpdatedAt = ts
	switch e.Action {
	case ActionForwarded:
		c.CurrentHandler = e.Handler
	case ActionResolved:
		c.ResolutionNote = e.Note
		c.ResolvedAt = &ts
	case ActionRejected:
		c.ResolutionNote = e.Note
		c.RejectedAt = &ts
	}
	c.Logs = append(c.Logs, e)
	return nil
}

func start(e LogEntry) (*Complaint, error) {
	if e.Action != ActionCreated {
		return nil, ErrInvalidTransition.withMessage("first entry is %s, want created", e.Action)
	}
	if strings.TrimSpace(e.UpdatedBy) == "" || strings.TrimSpace(e.Handler) == "" {
		return nil, ErrValidation.withMessage("created entry needs a creator and a handler")
	}
	return &Complaint{
		CreatedBy:      e.UpdatedBy,
		AssignedTo:     e.Handler,
		CurrentHandler: e.Handler,
		Status:         StatusPending,
		CreatedAt:      e.Timestamp,
		UpdatedAt:      e.Timestamp,
		Logs:           []LogEntry{e},
	}, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
