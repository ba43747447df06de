package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

// ReserveLimit caps how many reservations a free-tier lawyer can open per
// day. Premium accounts bypass the cap. Counts escrow_lock ledger entries
// since midnight UTC, so consumed and refunded reservations still count
// against the day.
func ReserveLimit(pool *pgxpool.Pool, dailyCap int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := AccountFromCtx(r.Context())
			if acc == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if acc.IsPremium || dailyCap <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			count, err := dailyReservationsFn(r.Context(), pool, acc.ID)
			if err != nil {
				http.Error(w, `{"error":"failed to check reservation limit"}`, http.StatusInternalServerError)
				return
			}
			if count >= dailyCap {
				http.Error(w, fmt.Sprintf(`{"error":"daily reservation limit of %d reached"}`, dailyCap), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// dailyReservationsFn counts today's reservations for the account.
// Tests can replace this to avoid hitting a real database.
var dailyReservationsFn = defaultDailyReservations

func defaultDailyReservations(ctx context.Context, pool *pgxpool.Pool, accountID uuid.UUID) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM juris_ledger
		WHERE account_id = $1 AND entry_type = $2 AND created_at >= CURRENT_DATE
	`, accountID, models.JurisEntryEscrowLock).Scan(&n)
	return n, err
}
