package complaints

import (
	"strings"

	"complaintdesk/core/directory"
)

// The projections below are read-only views over a List result. They decide
// what a person sees, never what a person may do.

// ViewFor returns the complaints a person works with: students see what they
// filed, everyone else sees what they currently handle.
func ViewFor(items []Complaint, actor directory.Person) []Complaint {
	if actor.Role == directory.RoleStudent {
		return filter(items, func(c Complaint) bool { return c.CreatedBy == actor.ID })
	}
	return filter(items, func(c Complaint) bool { return c.CurrentHandler == actor.ID })
}

// Search matches text case-insensitively against title and description.
func Search(items []Complaint, text string) []Complaint {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return items
	}
	return filter(items, func(c Complaint) bool {
		return strings.Contains(strings.ToLower(c.Title), q) ||
			strings.Contains(strings.ToLower(c.Description), q)
	})
}

func FilterStatus(items []Complaint, status Status) []Complaint {
	if status == "" {
		return items
	}
	return filter(items, func(c Complaint) bool { return c.Status == status })
}

// ActedOn lists complaints with at least one non-created entry by actorID.
func ActedOn(items []Complaint, actorID string) []Complaint {
	return filter(items, func(c Complaint) bool {
		for _, e := range c.Logs {
			if e.Action != ActionCreated && e.UpdatedBy == actorID {
				return true
			}
		}
		return false
	})
}

type Summary struct {
	Total     int `json:"total"`
	Open      int `json:"open"`
	Pending   int `json:"pending"`
	Forwarded int `json:"forwarded"`
	Resolved  int `json:"resolved"`
	Rejected  int `json:"rejected"`
}

func Summarize(items []Complaint) Summary {
	var s Summary
	for _, c := range items {
		s.Total++
		switch c.Status {
		case StatusPending:
			s.Pending++
			s.Open++
		case StatusForwarded:
			s.Forwarded++
			s.Open++
		case StatusResolved:
			s.Resolved++
		case StatusRejected:
			s.Rejected++
		}
	}
	return s
}

func filter(items []Complaint, keep func(Complaint) bool) []Complaint {
	out := make([]Complaint, 0, len(items))
	for _, c := range items {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
