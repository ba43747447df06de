package cases

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lexbridge/backend/internal/auth"
	"github.com/lexbridge/backend/internal/middleware"
	"github.com/lexbridge/backend/internal/models"
	"github.com/lexbridge/backend/internal/reservation"
)

// Request/response structs use snake_case JSON.

type CreateCaseRequest struct {
	Title        string `json:"title"`
	Details      string `json:"details"`
	PracticeArea string `json:"practice_area"`
}

type HireRequest struct {
	LawyerID string `json:"lawyer_id"`
}

type CloseRequest struct {
	Feedback string  `json:"feedback"`
	Rating   float64 `json:"rating"`
}

type CaseResponse struct {
	ID             string  `json:"id"`
	ClientID       string  `json:"client_id"`
	LawyerID       *string `json:"lawyer_id,omitempty"`
	Title          string  `json:"title"`
	Details        string  `json:"details"`
	PracticeArea   string  `json:"practice_area"`
	Status         string  `json:"status"`
	RatingDeadline *string `json:"rating_deadline,omitempty"`
}

type Handler struct {
	svc     Service
	authSvc auth.Service
	log     *slog.Logger
}

func NewHandler(svc Service, authSvc auth.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, authSvc: authSvc, log: log}
}

func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	clientID, role, err := h.accountFromRequest(r)
	if err != nil || clientID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleClient {
		http.Error(w, "only clients can publish cases", http.StatusForbidden)
		return
	}
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Details == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	c, err := h.svc.PublishCase(r.Context(), clientID, PublishCaseInput{
		Title:        req.Title,
		Details:      req.Details,
		PracticeArea: strings.ToLower(strings.TrimSpace(req.PracticeArea)),
	})
	if err != nil {
		h.log.Error("publish case failed", "error", err)
		http.Error(w, "publish case failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, caseToResponse(c))
}

// ListCases returns the caller's own cases for clients and the open
// marketplace for lawyers.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := h.accountFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var list []*models.LegalCase
	if role == models.RoleClient {
		list, err = h.svc.ListByClient(r.Context(), accountID)
	} else {
		list, err = h.svc.ListOpen(r.Context())
	}
	if err != nil {
		h.log.Error("list cases failed", "error", err)
		http.Error(w, "list cases failed", http.StatusInternalServerError)
		return
	}
	resp := make([]CaseResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, caseToResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.accountFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	caseID, ok := pathCaseID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetCase(r.Context(), caseID)
	if err != nil {
		h.writeError(w, err, "get case failed")
		return
	}
	writeJSON(w, http.StatusOK, caseToResponse(c))
}

// ExpressInterest runs behind the JWT auth + reserve limit middleware chain,
// so the account comes from the request context.
func (h *Handler) ExpressInterest(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if acc.Role != models.RoleLawyer {
		http.Error(w, `{"error":"only lawyers can express interest"}`, http.StatusForbidden)
		return
	}
	caseID, ok := pathCaseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ExpressInterest(r.Context(), acc.ID, caseID); err != nil {
		h.writeError(w, err, "express interest failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HireLawyer(w http.ResponseWriter, r *http.Request) {
	clientID, _, err := h.accountFromRequest(r)
	if err != nil || clientID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	caseID, ok := pathCaseID(w, r)
	if !ok {
		return
	}
	var req HireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	lawyerID, err := uuid.Parse(req.LawyerID)
	if err != nil {
		http.Error(w, "invalid lawyer_id", http.StatusBadRequest)
		return
	}
	if err := h.svc.HireLawyer(r.Context(), clientID, caseID, lawyerID); err != nil {
		h.writeError(w, err, "hire failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CloseCase(w http.ResponseWriter, r *http.Request) {
	clientID, _, err := h.accountFromRequest(r)
	if err != nil || clientID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	caseID, ok := pathCaseID(w, r)
	if !ok {
		return
	}
	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		http.Error(w, "rating must be between 0 and 5", http.StatusBadRequest)
		return
	}
	if err := h.svc.CloseCase(r.Context(), clientID, caseID, req.Feedback, req.Rating); err != nil {
		h.writeError(w, err, "close case failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) InterestedLawyers(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.accountFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	caseID, ok := pathCaseID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.InterestedLawyers(r.Context(), caseID)
	if err != nil {
		h.log.Error("list interested lawyers failed", "error", err)
		http.Error(w, "list interested lawyers failed", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*InterestedLawyer{}
	}
	writeJSON(w, http.StatusOK, list)
}

// writeError maps business-rule outcomes to status codes. InsufficientBalance
// gets its own status because the client UI offers a top-up path for it.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, reservation.ErrInsufficientBalance):
		http.Error(w, `{"error":"insufficient_balance"}`, http.StatusPaymentRequired)
	case errors.Is(err, reservation.ErrDuplicateReservation):
		http.Error(w, `{"error":"duplicate_reservation"}`, http.StatusConflict)
	case errors.Is(err, reservation.ErrReservationNotFound):
		http.Error(w, `{"error":"reservation_not_found"}`, http.StatusConflict)
	case errors.Is(err, reservation.ErrCaseNotOpen):
		http.Error(w, `{"error":"case_not_open"}`, http.StatusConflict)
	case errors.Is(err, ErrCaseNotActive):
		http.Error(w, `{"error":"case_not_active"}`, http.StatusConflict)
	case errors.Is(err, ErrNotCaseOwner):
		http.Error(w, `{"error":"not_case_owner"}`, http.StatusForbidden)
	case errors.Is(err, ErrCaseNotFound):
		http.Error(w, `{"error":"case_not_found"}`, http.StatusNotFound)
	default:
		h.log.Error(fallback, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func (h *Handler) accountFromRequest(r *http.Request) (uuid.UUID, string, error) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, "", nil
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, "", nil
	}
	return h.authSvc.ValidateToken(r.Context(), token)
}

func pathCaseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid case id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func caseToResponse(c *models.LegalCase) CaseResponse {
	out := CaseResponse{
		ID:           c.ID.String(),
		ClientID:     c.ClientID.String(),
		Title:        c.Title,
		Details:      c.Details,
		PracticeArea: c.PracticeArea,
		Status:       c.Status,
	}
	if c.LawyerID != nil {
		s := c.LawyerID.String()
		out.LawyerID = &s
	}
	if c.RatingDeadline != nil {
		s := c.RatingDeadline.UTC().Format("2006-01-02T15:04:05Z07:00")
		out.RatingDeadline = &s
	}
	return out
}
