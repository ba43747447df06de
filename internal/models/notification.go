package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification kinds emitted by the case state machine.
const (
	NotifyNewProposal      = "new_proposal"
	NotifyProposalAccepted = "proposal_accepted"
)

// Notification is an outbox row. The core transaction commits independently
// of it; a background worker publishes rows and stamps published_at.
type Notification struct {
	ID          uuid.UUID       `json:"id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	CaseID      uuid.UUID       `json:"case_id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}
