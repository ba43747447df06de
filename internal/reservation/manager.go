package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexbridge/backend/internal/models"
)

// Business-rule outcomes. Callers branch on these; none is fatal.
var (
	ErrInsufficientBalance  = errors.New("insufficient juris balance")
	ErrDuplicateReservation = errors.New("active reservation already exists for this case")
	ErrReservationNotFound  = errors.New("no active reservation for this lawyer and case")
	ErrCaseNotOpen          = errors.New("case is not open")
)

// DB begins transactions; satisfied by *pgxpool.Pool and by *Repository.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStore is the minimal account interface for escrow. DebitJuris must
// be conditional on sufficient balance and report pgx.ErrNoRows otherwise.
type AccountStore interface {
	DebitJuris(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	CreditJuris(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// LedgerStore appends audit entries for every balance mutation.
type LedgerStore interface {
	AppendTx(ctx context.Context, tx pgx.Tx, e *models.JurisEntry) error
}

// ReservationStore is the reservation row interface; *Repository implements it.
type ReservationStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, res *models.Reservation) error
	MarkConsumedTx(ctx context.Context, tx pgx.Tx, lawyerID, caseID uuid.UUID, at time.Time) (*models.Reservation, error)
	ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	MarkExpiredTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Reservation, bool, error)
	AddInterestTx(ctx context.Context, tx pgx.Tx, caseID, lawyerID uuid.UUID) error
}

// CaseStatusStore reads a case's current status inside the transaction.
// Implemented by the cases repository.
type CaseStatusStore interface {
	StatusTx(ctx context.Context, tx pgx.Tx, caseID uuid.UUID) (string, error)
}

// Manager is the single authority for reservation state and the Juris debits
// and credits it implies. Nothing else in the service writes balances.
type Manager interface {
	CreateReservation(ctx context.Context, lawyerID, caseID uuid.UUID, escrowAmount int) (uuid.UUID, error)
	ConsumeReservation(ctx context.Context, lawyerID, caseID uuid.UUID, additionalAmount int) error
	ConsumeReservationTx(ctx context.Context, tx pgx.Tx, lawyerID, caseID uuid.UUID, additionalAmount int) error
	ExpireDueReservations(ctx context.Context, now time.Time) (int, error)
	TopUp(ctx context.Context, accountID uuid.UUID, amount int) (int, error)
}

type manager struct {
	db       DB
	accounts AccountStore
	ledger   LedgerStore
	store    ReservationStore
	cases    CaseStatusStore
	ttl      time.Duration
	log      *slog.Logger
}

func NewManager(db DB, accounts AccountStore, ledger LedgerStore, store ReservationStore, cases CaseStatusStore, ttl time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	return &manager{db: db, accounts: accounts, ledger: ledger, store: store, cases: cases, ttl: ttl, log: log}
}

var _ Manager = (*manager)(nil)

// CreateReservation escrows escrowAmount from the lawyer against the case.
// Case-open check, duplicate check, debit, reservation insert, interest link
// and ledger entry all commit as one unit; any failure leaves no mutation.
func (m *manager) CreateReservation(ctx context.Context, lawyerID, caseID uuid.UUID, escrowAmount int) (uuid.UUID, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin create reservation: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := m.cases.StatusTx(ctx, tx, caseID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read case status: %w", err)
	}
	if status != models.CaseStatusOpen {
		return uuid.Nil, ErrCaseNotOpen
	}

	res := &models.Reservation{
		ID:           uuid.New(),
		LawyerID:     lawyerID,
		CaseID:       caseID,
		LockedAmount: escrowAmount,
		ExpiresAt:    time.Now().Add(m.ttl),
	}
	if err := m.store.InsertTx(ctx, tx, res); err != nil {
		return uuid.Nil, err
	}

	newBalance, err := m.accounts.DebitJuris(ctx, tx, lawyerID, escrowAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrInsufficientBalance
		}
		return uuid.Nil, fmt.Errorf("debit escrow: %w", err)
	}

	if err := m.store.AddInterestTx(ctx, tx, caseID, lawyerID); err != nil {
		return uuid.Nil, fmt.Errorf("record interest: %w", err)
	}
	if err := m.ledger.AppendTx(ctx, tx, &models.JurisEntry{
		ID: uuid.New(), AccountID: lawyerID, CaseID: &caseID,
		EntryType: models.JurisEntryEscrowLock, Amount: escrowAmount, BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return uuid.Nil, fmt.Errorf("append ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit create reservation: %w", err)
	}
	return res.ID, nil
}

// ConsumeReservation runs ConsumeReservationTx in its own transaction.
func (m *manager) ConsumeReservation(ctx context.Context, lawyerID, caseID uuid.UUID, additionalAmount int) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consume reservation: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := m.ConsumeReservationTx(ctx, tx, lawyerID, caseID, additionalAmount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ConsumeReservationTx finalizes the reservation inside the caller's
// transaction: conditional status flip first, then the additional debit.
// The two failure modes stay distinct so callers can tell "never reserved"
// from "cannot afford the hire fee". The escrowed amount is not returned.
func (m *manager) ConsumeReservationTx(ctx context.Context, tx pgx.Tx, lawyerID, caseID uuid.UUID, additionalAmount int) error {
	res, err := m.store.MarkConsumedTx(ctx, tx, lawyerID, caseID, time.Now())
	if err != nil {
		return err
	}

	newBalance, err := m.accounts.DebitJuris(ctx, tx, lawyerID, additionalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("debit hire fee: %w", err)
	}

	return m.ledger.AppendTx(ctx, tx, &models.JurisEntry{
		ID: uuid.New(), AccountID: lawyerID, CaseID: &res.CaseID,
		EntryType: models.JurisEntryHireFee, Amount: additionalAmount, BalanceAfter: intPtr(newBalance),
	})
}

// ExpireDueReservations refunds every reservation past its deadline. Each
// refund is its own transaction keyed on a conditional status update, so the
// sweep is idempotent and safe to run concurrently: a reservation that lost
// the active status between scan and transition is skipped, never
// double-refunded. Individual failures are logged and skipped.
func (m *manager) ExpireDueReservations(ctx context.Context, now time.Time) (int, error) {
	ids, err := m.store.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("scan due reservations: %w", err)
	}

	expired := 0
	for _, id := range ids {
		refunded, err := m.expireOne(ctx, id)
		if err != nil {
			m.log.Error("expire reservation", "reservation_id", id, "error", err)
			continue
		}
		if refunded {
			expired++
		}
	}
	return expired, nil
}

// expireOne refunds a single reservation. refunded is false when a racing
// consume or an earlier sweep already took the reservation out of active.
func (m *manager) expireOne(ctx context.Context, id uuid.UUID) (refunded bool, err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin expire: %w", err)
	}
	defer tx.Rollback(ctx)

	res, ok, err := m.store.MarkExpiredTx(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("mark expired: %w", err)
	}
	if !ok {
		return false, nil
	}

	newBalance, err := m.accounts.CreditJuris(ctx, tx, res.LawyerID, res.LockedAmount)
	if err != nil {
		return false, fmt.Errorf("refund escrow: %w", err)
	}
	if err := m.ledger.AppendTx(ctx, tx, &models.JurisEntry{
		ID: uuid.New(), AccountID: res.LawyerID, CaseID: &res.CaseID,
		EntryType: models.JurisEntryEscrowRefund, Amount: res.LockedAmount, BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return false, fmt.Errorf("append refund ledger: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// TopUp credits the account (external payment flow glue) and records it.
func (m *manager) TopUp(ctx context.Context, accountID uuid.UUID, amount int) (int, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin topup: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := m.accounts.CreditJuris(ctx, tx, accountID, amount)
	if err != nil {
		return 0, fmt.Errorf("credit topup: %w", err)
	}
	if err := m.ledger.AppendTx(ctx, tx, &models.JurisEntry{
		ID: uuid.New(), AccountID: accountID,
		EntryType: models.JurisEntryTopup, Amount: amount, BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return 0, fmt.Errorf("append topup ledger: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func intPtr(n int) *int { return &n }
