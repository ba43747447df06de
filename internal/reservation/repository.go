package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTx inserts an active reservation row. The partial unique index on
// (lawyer_id, case_id) WHERE status = 'active' is the store-level guard
// against duplicate escrow; a violation maps to ErrDuplicateReservation.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, res *models.Reservation) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO reservations (id, lawyer_id, case_id, locked_amount, status, expires_at)
		VALUES ($1, $2, $3, $4, 'active', $5)
		RETURNING created_at
	`, res.ID, res.LawyerID, res.CaseID, res.LockedAmount, res.ExpiresAt).Scan(&res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReservation
		}
		return err
	}
	res.Status = models.ReservationStatusActive
	return nil
}

// MarkConsumedTx flips the active reservation for (lawyerID, caseID) to
// consumed. The status condition makes this the winning or losing side of the
// consume/expire race: zero rows means the reservation is no longer active.
func (r *Repository) MarkConsumedTx(ctx context.Context, tx pgx.Tx, lawyerID, caseID uuid.UUID, at time.Time) (*models.Reservation, error) {
	var res models.Reservation
	err := tx.QueryRow(ctx, `
		UPDATE reservations SET status = 'consumed', consumed_at = $3
		WHERE lawyer_id = $1 AND case_id = $2 AND status = 'active'
		RETURNING id, lawyer_id, case_id, locked_amount, status, created_at, expires_at, consumed_at
	`, lawyerID, caseID, at).Scan(&res.ID, &res.LawyerID, &res.CaseID, &res.LockedAmount, &res.Status,
		&res.CreatedAt, &res.ExpiresAt, &res.ConsumedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListDue returns IDs of active reservations whose deadline has passed.
// Status is re-validated at transition time by MarkExpiredTx, not here.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM reservations WHERE status = 'active' AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkExpiredTx transitions a reservation to expired only if it is still
// active. ok is false when a racing consume or an earlier sweep got there
// first; the caller must then skip the refund.
func (r *Repository) MarkExpiredTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Reservation, bool, error) {
	var res models.Reservation
	err := tx.QueryRow(ctx, `
		UPDATE reservations SET status = 'expired'
		WHERE id = $1 AND status = 'active'
		RETURNING id, lawyer_id, case_id, locked_amount, status, created_at, expires_at, consumed_at
	`, id).Scan(&res.ID, &res.LawyerID, &res.CaseID, &res.LockedAmount, &res.Status,
		&res.CreatedAt, &res.ExpiresAt, &res.ConsumedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// AddInterestTx records the denormalized case -> lawyer interest link.
// The reservations table stays authoritative, so conflicts are ignored.
func (r *Repository) AddInterestTx(ctx context.Context, tx pgx.Tx, caseID, lawyerID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO case_interests (case_id, lawyer_id)
		VALUES ($1, $2)
		ON CONFLICT (case_id, lawyer_id) DO NOTHING
	`, caseID, lawyerID)
	return err
}

// GetByLawyerAndCase returns the most recent reservation for the pair, or nil.
func (r *Repository) GetByLawyerAndCase(ctx context.Context, lawyerID, caseID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.pool.QueryRow(ctx, `
		SELECT id, lawyer_id, case_id, locked_amount, status, created_at, expires_at, consumed_at
		FROM reservations WHERE lawyer_id = $1 AND case_id = $2
		ORDER BY created_at DESC LIMIT 1
	`, lawyerID, caseID).Scan(&res.ID, &res.LawyerID, &res.CaseID, &res.LockedAmount, &res.Status,
		&res.CreatedAt, &res.ExpiresAt, &res.ConsumedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}
