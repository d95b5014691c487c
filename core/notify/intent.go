// Package notify carries notification intents from the outbox to a delivery
// sink. Delivery is best effort and never feeds back into complaint state.
package notify

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

type Kind string

const (
	KindAssigned  Kind = "assigned"
	KindResolved  Kind = "resolved"
	KindRejected  Kind = "rejected"
	KindForwarded Kind = "forwarded"
)

// Intent is a message describing one state change, addressed to one person.
// Recipient is the person id used by the inbox; Address is where a sink
// delivers it.
type Intent struct {
	ID          string    `json:"id"`
	ComplaintID string    `json:"complaint_id"`
	Kind        Kind      `json:"kind"`
	Recipient   string    `json:"recipient"`
	Address     string    `json:"address"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewIntent(kind Kind, complaintID, recipient, address, title string, now time.Time) Intent {
	subject, body := render(kind, title)
	return Intent{
		ID:          uuid.Must(uuid.NewV4()).String(),
		ComplaintID: complaintID,
		Kind:        kind,
		Recipient:   recipient,
		Address:     address,
		Subject:     subject,
		Body:        body,
		CreatedAt:   now,
	}
}

func render(kind Kind, title string) (string, string) {
	switch kind {
	case KindAssigned:
		return "New complaint assigned", fmt.Sprintf("New complaint assigned: %q", title)
	case KindResolved:
		return "Complaint resolved", fmt.Sprintf("Your complaint %q has been resolved.", title)
	case KindRejected:
		return "Complaint rejected", fmt.Sprintf("Your complaint %q has been rejected.", title)
	case KindForwarded:
		return "Complaint forwarded", fmt.Sprintf("A complaint has been forwarded to you: %q", title)
	}
	return "Complaint update", title
}
