package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation status enums. A reservation leaves "active" exactly once:
// either consumed (hire) or expired (TTL sweep). Rows are never deleted.
const (
	ReservationStatusActive   = "active"
	ReservationStatusConsumed = "consumed"
	ReservationStatusExpired  = "expired"
)

type Reservation struct {
	ID           uuid.UUID  `json:"id"`
	LawyerID     uuid.UUID  `json:"lawyer_id"`
	CaseID       uuid.UUID  `json:"case_id"`
	LockedAmount int        `json:"locked_amount"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	ConsumedAt   *time.Time `json:"consumed_at,omitempty"`
}
