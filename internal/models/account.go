package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleClient = "client"
	RoleLawyer = "lawyer"
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	JurisBalance int       `json:"juris_balance"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
