package models

import (
	"time"

	"github.com/google/uuid"
)

// Case status enums. Transitions are linear: open -> active -> closed.
const (
	CaseStatusOpen   = "open"
	CaseStatusActive = "active"
	CaseStatusClosed = "closed"
)

type LegalCase struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       uuid.UUID  `json:"client_id"`
	LawyerID       *uuid.UUID `json:"lawyer_id,omitempty"`
	Title          string     `json:"title"`
	Details        string     `json:"details"`
	PracticeArea   string     `json:"practice_area"`
	Status         string     `json:"status"`
	Feedback       *string    `json:"feedback,omitempty"`
	RatingDeadline *time.Time `json:"rating_deadline,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
