package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, display_name, role, password_hash, juris_balance, is_premium)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.DisplayName, a.Role, a.PasswordHash, a.JurisBalance, a.IsPremium).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, role, password_hash, juris_balance, is_premium, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.DisplayName, &a.Role, &a.PasswordHash, &a.JurisBalance, &a.IsPremium, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := tx.QueryRow(ctx, `
		SELECT id, email, display_name, role, password_hash, juris_balance, is_premium, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE
	`, id).Scan(&a.ID, &a.Email, &a.DisplayName, &a.Role, &a.PasswordHash, &a.JurisBalance, &a.IsPremium, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DebitJuris atomically deducts amount if juris_balance >= amount.
// The balance check and the write are a single conditional UPDATE, so two
// concurrent debits can never both pass on the same funds.
func (r *AccountRepo) DebitJuris(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET juris_balance = juris_balance - $1, updated_at = now()
		WHERE id = $2 AND juris_balance >= $1
		RETURNING juris_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// CreditJuris adds amount to the account and returns the new balance.
func (r *AccountRepo) CreditJuris(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET juris_balance = juris_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING juris_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

func (r *AccountRepo) SetPremium(ctx context.Context, id uuid.UUID, premium bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET is_premium = $2, updated_at = now() WHERE id = $1
	`, id, premium)
	return err
}
