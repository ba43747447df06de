package models

import (
	"time"

	"github.com/google/uuid"
)

// Juris ledger entry_type enums. Every balance mutation appends one entry.
const (
	JurisEntryEscrowLock   = "escrow_lock"
	JurisEntryEscrowRefund = "escrow_refund"
	JurisEntryHireFee      = "hire_fee"
	JurisEntryTopup        = "topup"
)

type JurisEntry struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	CaseID       *uuid.UUID `json:"case_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
