package cases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

func (r *Repository) Create(ctx context.Context, c *models.LegalCase) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO cases (id, client_id, title, details, practice_area, status)
		VALUES ($1, $2, $3, $4, $5, 'open')
		RETURNING created_at, updated_at
	`, c.ID, c.ClientID, c.Title, c.Details, c.PracticeArea).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.LegalCase, error) {
	var c models.LegalCase
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, lawyer_id, title, details, practice_area, status, feedback, rating_deadline, created_at, updated_at
		FROM cases WHERE id = $1
	`, id).Scan(&c.ID, &c.ClientID, &c.LawyerID, &c.Title, &c.Details, &c.PracticeArea, &c.Status,
		&c.Feedback, &c.RatingDeadline, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// StatusTx reads the case status with a share lock, so a concurrent hire
// cannot flip the case out of open until the reading transaction commits.
func (r *Repository) StatusTx(ctx context.Context, tx pgx.Tx, caseID uuid.UUID) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `
		SELECT status FROM cases WHERE id = $1 FOR SHARE
	`, caseID).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// HireTx binds the lawyer and flips the case to active, but only while the
// case is still open. false means another writer won the transition.
func (r *Repository) HireTx(ctx context.Context, tx pgx.Tx, caseID, lawyerID uuid.UUID, ratingDeadline time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE cases SET lawyer_id = $2, status = 'active', rating_deadline = $3, updated_at = now()
		WHERE id = $1 AND status = 'open'
	`, caseID, lawyerID, ratingDeadline)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Close stores feedback and flips the case to closed, only from active.
func (r *Repository) Close(ctx context.Context, caseID uuid.UUID, feedback string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET status = 'closed', feedback = $2, updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, caseID, feedback)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.LegalCase, error) {
	return r.list(ctx, `
		SELECT id, client_id, lawyer_id, title, details, practice_area, status, feedback, rating_deadline, created_at, updated_at
		FROM cases WHERE client_id = $1 ORDER BY created_at DESC
	`, clientID)
}

// ListOpen returns open cases for lawyers browsing the marketplace.
func (r *Repository) ListOpen(ctx context.Context) ([]*models.LegalCase, error) {
	return r.list(ctx, `
		SELECT id, client_id, lawyer_id, title, details, practice_area, status, feedback, rating_deadline, created_at, updated_at
		FROM cases WHERE status = 'open' ORDER BY created_at DESC
	`)
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]*models.LegalCase, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LegalCase
	for rows.Next() {
		var c models.LegalCase
		if err := rows.Scan(&c.ID, &c.ClientID, &c.LawyerID, &c.Title, &c.Details, &c.PracticeArea, &c.Status,
			&c.Feedback, &c.RatingDeadline, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// InterestedLawyer is a row of the denormalized "who bid on this case" view.
// The reservations table stays authoritative for escrow state.
type InterestedLawyer struct {
	LawyerID          uuid.UUID `json:"lawyer_id"`
	DisplayName       string    `json:"display_name"`
	ReservationStatus string    `json:"reservation_status"`
}

func (r *Repository) InterestedLawyers(ctx context.Context, caseID uuid.UUID) ([]*InterestedLawyer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ci.lawyer_id, a.display_name, res.status
		FROM case_interests ci
		JOIN accounts a ON a.id = ci.lawyer_id
		JOIN LATERAL (
			SELECT status FROM reservations
			WHERE lawyer_id = ci.lawyer_id AND case_id = ci.case_id
			ORDER BY created_at DESC LIMIT 1
		) res ON true
		WHERE ci.case_id = $1 AND res.status IN ('active', 'consumed')
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*InterestedLawyer
	for rows.Next() {
		var il InterestedLawyer
		if err := rows.Scan(&il.LawyerID, &il.DisplayName, &il.ReservationStatus); err != nil {
			return nil, err
		}
		list = append(list, &il)
	}
	return list, rows.Err()
}

// ErrCaseNotFound distinguishes a missing case from store failures.
var ErrCaseNotFound = errors.New("case not found")
