package complaints

import "fmt"

// Replay rebuilds the mutable state of a complaint from its log alone.
// Identity fields (id, title, description) are not part of the log and stay empty.
func Replay(logs []LogEntry) (*Complaint, error) {
	if len(logs) == 0 {
		return nil, ErrValidation.withMessage("empty log")
	}
	c, err := start(logs[0])
	if err != nil {
		return nil, err
	}
	for i, e := range logs[1:] {
		if e.Action == ActionCreated {
			return nil, ErrInvalidTransition.withMessage("entry %d: duplicate created", i+1)
		}
		if err := Apply(c, e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	c.Version = len(logs)
	return c, nil
}

// Verify checks that c agrees with the fold of its own log.
func Verify(c *Complaint) error {
	if c == nil {
		return ErrNotFound
	}
	r, err := Replay(c.Logs)
	if err != nil {
		return fmt.Errorf("complaint %s: %w", c.ID, err)
	}
	mismatch := func(field string, got, want any) error {
		return ErrConflict.withMessage("complaint %s: %s is %v, log says %v", c.ID, field, got, want)
	}
	switch {
	case c.CreatedBy != r.CreatedBy:
		return mismatch("created_by", c.CreatedBy, r.CreatedBy)
	case c.AssignedTo != r.AssignedTo:
		return mismatch("assigned_to", c.AssignedTo, r.AssignedTo)
	case c.CurrentHandler != r.CurrentHandler:
		return mismatch("current_handler", c.CurrentHandler, r.CurrentHandler)
	case c.Status != r.Status:
		return mismatch("status", c.Status, r.Status)
	case c.ResolutionNote != r.ResolutionNote:
		return mismatch("resolution_note", c.ResolutionNote, r.ResolutionNote)
	case !c.CreatedAt.Equal(r.CreatedAt):
		return mismatch("created_at", c.CreatedAt, r.CreatedAt)
	case !c.UpdatedAt.Equal(r.UpdatedAt):
		return mismatch("updated_at", c.UpdatedAt, r.UpdatedAt)
	case !sameInstant(c.ResolvedAt, r.ResolvedAt):
		return mismatch("resolved_at", c.ResolvedAt, r.ResolvedAt)
	case !sameInstant(c.RejectedAt, r.RejectedAt):
		return mismatch("rejected_at", c.RejectedAt, r.RejectedAt)
	case c.Version != r.Version:
		return mismatch("version", c.Version, r.Version)
	}
	return nil
}
