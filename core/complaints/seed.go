package complaints

import (
	"context"
	"fmt"
	"time"

	"complaintdesk/core/utils"
)

func at(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// DemoComplaints returns the demo data set matching the embedded directory.
// Every entry is built by folding its log, so it always passes Verify.
func DemoComplaints() []Complaint {
	type seed struct {
		id, title, description string
		logs                   []LogEntry
	}
	seeds := []seed{
		{
			id:          "c1",
			title:       "WiFi not working",
			description: "WiFi is down in the CS lab. We cannot access online resources for our project.",
			logs: []LogEntry{
				{Action: ActionCreated, UpdatedBy: "u1", Timestamp: at("2025-04-01T10:00:00Z"), Handler: "u3"},
			},
		},
		{
			id:          "c2",
			title:       "Projector not working",
			description: "The projector in Room 101 is not displaying properly. Colors are distorted.",
			logs: []LogEntry{
				{Action: ActionCreated, UpdatedBy: "u2", Timestamp: at("2025-04-02T14:30:00Z"), Handler: "u4"},
			},
		},
		{
			id:          "c3",
			title:       "AC not cooling",
			description: "The air conditioner in the CS-A classroom is not cooling properly.",
			logs: []LogEntry{
				{Action: ActionCreated, UpdatedBy: "u1", Timestamp: at("2025-04-03T09:15:00Z"), Handler: "u3"},
				{Action: ActionForwarded, UpdatedBy: "u3", Note: "This requires department approval for repair.", Timestamp: at("2025-04-03T11:20:00Z"), Handler: "u5"},
			},
		},
		{
			id:          "c4",
			title:       "Library books outdated",
			description: "The programming books in the library are outdated. We need newer editions.",
			logs: []LogEntry{
				{Action: ActionCreated, UpdatedBy: "u2", Timestamp: at("2025-04-04T13:45:00Z"), Handler: "u4"},
				{Action: ActionForwarded, UpdatedBy: "u4", Note: "This is a valid concern.", Timestamp: at("2025-04-04T15:20:00Z"), Handler: "u6"},
				{Action: ActionForwarded, UpdatedBy: "u6", Note: "This requires budget approval.", Timestamp: at("2025-04-05T09:30:00Z"), Handler: "u7"},
			},
		},
		{
			id:          "c5",
			title:       "Canteen food quality",
			description: "The quality of food in the canteen has deteriorated. Many students have complained of stomach issues.",
			logs: []LogEntry{
				{Action: ActionCreated, UpdatedBy: "u1", Timestamp: at("2025-04-01T11:30:00Z"), Handler: "u3"},
				{Action: ActionResolved, UpdatedBy: "u3", Note: "Spoke with the canteen manager. They will improve the quality and hygiene standards.", Timestamp: at("2025-04-02T10:15:00Z"), Handler: "u3"},
			},
		},
	}
	out := make([]Complaint, 0, len(seeds))
	for _, s := range seeds {
		c, err := Replay(s.logs)
		if err != nil {
			panic(fmt.Sprintf("demo complaint %s: %v", s.id, err))
		}
		c.ID = s.id
		c.Title = s.title
		c.Description = s.description
		out = append(out, *c)
	}
	return out
}

// SeedIfEmpty stores the demo complaints when the repository holds none.
func SeedIfEmpty(ctx context.Context, repo Repository, logger *utils.Logger) (bool, error) {
	existing, err := repo.LoadAll(ctx)
	if err != nil {
		return false, fmt.Errorf("load complaints: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	demo := DemoComplaints()
	if err := repo.SaveAll(ctx, demo); err != nil {
		return false, fmt.Errorf("seed demo complaints: %w", err)
	}
	logger.Printf("seeded %d demo complaints", len(demo))
	return true, nil
}
