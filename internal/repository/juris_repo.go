package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

// JurisRepo is the append-only audit trail of Juris balance changes.
type JurisRepo struct {
	pool *pgxpool.Pool
}

func NewJurisRepo(pool *pgxpool.Pool) *JurisRepo {
	return &JurisRepo{pool: pool}
}

// AppendTx inserts a ledger entry inside the given transaction.
func (r *JurisRepo) AppendTx(ctx context.Context, tx pgx.Tx, e *models.JurisEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO juris_ledger (id, account_id, case_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.AccountID, e.CaseID, e.EntryType, e.Amount, e.BalanceAfter).Scan(&e.CreatedAt)
}

func (r *JurisRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.JurisEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, case_id, entry_type, amount, balance_after, created_at
		FROM juris_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.JurisEntry
	for rows.Next() {
		var e models.JurisEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.CaseID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// CountEntriesToday counts entries of the given type for the account since
// midnight UTC. Used by the free-tier reservation cap.
func (r *JurisRepo) CountEntriesToday(ctx context.Context, accountID uuid.UUID, entryType string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM juris_ledger
		WHERE account_id = $1 AND entry_type = $2 AND created_at >= CURRENT_DATE
	`, accountID, entryType).Scan(&n)
	return n, err
}
