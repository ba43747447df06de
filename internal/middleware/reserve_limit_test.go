package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

// injectAccount wraps a handler to pre-set the account in context,
// simulating what JWTAuth would do upstream.
func injectAccount(acc *models.Account, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
	})
}

// limit200 proves the middleware let the request through.
var limit200 = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func stubDailyCount(t *testing.T, n int) {
	t.Helper()
	original := dailyReservationsFn
	dailyReservationsFn = func(_ context.Context, _ *pgxpool.Pool, _ uuid.UUID) (int, error) {
		return n, nil
	}
	t.Cleanup(func() { dailyReservationsFn = original })
}

func TestReserveLimit_UnderCap(t *testing.T) {
	stubDailyCount(t, 2)

	acc := &models.Account{ID: uuid.New(), Role: models.RoleLawyer}
	handler := injectAccount(acc, ReserveLimit(nil, 3)(limit200))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReserveLimit_CapReached(t *testing.T) {
	stubDailyCount(t, 3)

	acc := &models.Account{ID: uuid.New(), Role: models.RoleLawyer}
	handler := injectAccount(acc, ReserveLimit(nil, 3)(limit200))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "daily reservation limit") {
		t.Errorf("expected limit error message, got: %s", rec.Body.String())
	}
}

func TestReserveLimit_PremiumBypass(t *testing.T) {
	// The count fn must not even be consulted for premium accounts.
	original := dailyReservationsFn
	dailyReservationsFn = func(_ context.Context, _ *pgxpool.Pool, _ uuid.UUID) (int, error) {
		t.Error("daily count queried for premium account")
		return 0, nil
	}
	t.Cleanup(func() { dailyReservationsFn = original })

	acc := &models.Account{ID: uuid.New(), Role: models.RoleLawyer, IsPremium: true}
	handler := injectAccount(acc, ReserveLimit(nil, 3)(limit200))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReserveLimit_NoAccount(t *testing.T) {
	handler := ReserveLimit(nil, 3)(limit200)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
