package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new account. Juris balance starts at the schema default.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName, role string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, juris_balance, is_premium, created_at, updated_at
	`, email, passwordHash, displayName, role).Scan(&a.ID, &a.JurisBalance, &a.IsPremium, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Email = email
	a.DisplayName = displayName
	a.Role = role
	return &a, nil
}

// GetByEmail returns the account (with password hash) for login.
// Returns nil if not found.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, role, password_hash, juris_balance, is_premium, created_at, updated_at
		FROM accounts WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.DisplayName, &a.Role, &a.PasswordHash,
		&a.JurisBalance, &a.IsPremium, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
