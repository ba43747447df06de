package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LawyerProfile is the public directory entry for a lawyer account.
type LawyerProfile struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Name             string
	Slug             string
	Bio              string
	Specialties      []string
	ConsultRateCents int32
	ReputationScore  float64
	TotalCases       int32
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateParams struct {
	AccountID        uuid.UUID
	Name             string
	Slug             string
	Bio              string
	Specialties      []string
	ConsultRateCents int32
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (*LawyerProfile, error) {
	var id uuid.UUID
	var reputationScore float64
	var totalCases int32
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lawyer_profiles (
			account_id, name, slug, bio, specialties,
			consult_rate_cents, reputation_score, total_cases
		) VALUES ($1, $2, $3, $4, $5, $6, 0.00, 0)
		RETURNING id, reputation_score, total_cases
	`, p.AccountID, p.Name, p.Slug, p.Bio, p.Specialties, p.ConsultRateCents)
	if err := row.Scan(&id, &reputationScore, &totalCases); err != nil {
		return nil, err
	}
	return &LawyerProfile{
		ID:               id,
		AccountID:        p.AccountID,
		Name:             p.Name,
		Slug:             p.Slug,
		Bio:              p.Bio,
		Specialties:      p.Specialties,
		ConsultRateCents: p.ConsultRateCents,
		ReputationScore:  reputationScore,
		TotalCases:       totalCases,
	}, nil
}

func (r *Repository) List(ctx context.Context) ([]*LawyerProfile, error) {
	return r.list(ctx, `
		SELECT id, account_id, name, slug, bio, specialties,
		       consult_rate_cents, reputation_score, total_cases
		FROM lawyer_profiles
		ORDER BY reputation_score DESC, total_cases DESC
	`)
}

// ListBySpecialty feeds the matcher: profiles whose specialties contain the
// given practice area.
func (r *Repository) ListBySpecialty(ctx context.Context, practiceArea string) ([]*LawyerProfile, error) {
	return r.list(ctx, `
		SELECT id, account_id, name, slug, bio, specialties,
		       consult_rate_cents, reputation_score, total_cases
		FROM lawyer_profiles
		WHERE $1 = ANY(specialties)
		ORDER BY reputation_score DESC, total_cases DESC
	`, practiceArea)
}

func (r *Repository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*LawyerProfile, error) {
	list, err := r.list(ctx, `
		SELECT id, account_id, name, slug, bio, specialties,
		       consult_rate_cents, reputation_score, total_cases
		FROM lawyer_profiles WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]*LawyerProfile, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*LawyerProfile
	for rows.Next() {
		var p LawyerProfile
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Name, &p.Slug, &p.Bio, &p.Specialties,
			&p.ConsultRateCents, &p.ReputationScore, &p.TotalCases); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// RecordCaseClosed bumps the rolling reputation after a case closes with a
// positive rating. Average is recomputed incrementally.
func (r *Repository) RecordCaseClosed(ctx context.Context, accountID uuid.UUID, rating float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lawyer_profiles
		SET reputation_score = (reputation_score * total_cases + $2) / (total_cases + 1),
		    total_cases = total_cases + 1
		WHERE account_id = $1
	`, accountID, rating)
	return err
}
