package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lexbridge/backend/internal/auth"
	"github.com/lexbridge/backend/internal/models"
	"github.com/lexbridge/backend/internal/repository"
	"github.com/lexbridge/backend/internal/reservation"
)

type Handler struct {
	authSvc      auth.Service
	accountR     *repository.AccountRepo
	jurisR       *repository.JurisRepo
	notifR       *repository.NotificationRepo
	reservations reservation.Manager
	log          *slog.Logger
}

func NewHandler(
	authSvc auth.Service,
	accountR *repository.AccountRepo,
	jurisR *repository.JurisRepo,
	notifR *repository.NotificationRepo,
	reservations reservation.Manager,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		authSvc:      authSvc,
		accountR:     accountR,
		jurisR:       jurisR,
		notifR:       notifR,
		reservations: reservations,
		log:          log,
	}
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, fmt.Errorf("missing authorization")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, fmt.Errorf("bad authorization format")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, fmt.Errorf("empty token")
	}
	id, _, err := h.authSvc.ValidateToken(r.Context(), token)
	return id, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account failed", "error", err)
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            acc.ID,
		"email":         acc.Email,
		"display_name":  acc.DisplayName,
		"role":          acc.Role,
		"juris_balance": acc.JurisBalance,
		"is_premium":    acc.IsPremium,
		"created_at":    acc.CreatedAt,
	})
}

// GET /api/v1/juris-ledger
func (h *Handler) ListJurisLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	entries, err := h.jurisR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list juris ledger failed", "error", err)
		http.Error(w, "list ledger failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.JurisEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.notifR.ListByRecipient(r.Context(), accountID)
	if err != nil {
		h.log.Error("list notifications failed", "error", err)
		http.Error(w, "list notifications failed", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /api/v1/account/topup
// Payment processing happens elsewhere; this endpoint credits the balance
// once the external provider confirms.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Amount <= 0 {
		http.Error(w, "amount must be > 0", http.StatusBadRequest)
		return
	}
	newBalance, err := h.reservations.TopUp(r.Context(), accountID, body.Amount)
	if err != nil {
		h.log.Error("topup failed", "error", err)
		http.Error(w, "topup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"juris_balance": newBalance,
	})
}
