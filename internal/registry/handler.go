package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lexbridge/backend/internal/auth"
	"github.com/lexbridge/backend/internal/models"
)

// Request/response structs use snake_case JSON.

type CreateProfileRequest struct {
	Name             string   `json:"name"`
	Bio              string   `json:"bio"`
	Specialties      []string `json:"specialties"`
	ConsultRateCents int32    `json:"consult_rate_cents"`
}

type LawyerProfileResponse struct {
	ID               string   `json:"id"`
	AccountID        string   `json:"account_id"`
	Name             string   `json:"name"`
	Slug             string   `json:"slug"`
	Bio              string   `json:"bio"`
	Specialties      []string `json:"specialties"`
	ConsultRateCents int32    `json:"consult_rate_cents"`
	ReputationScore  float64  `json:"reputation_score"`
	TotalCases       int32    `json:"total_cases"`
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

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := h.accountFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleLawyer {
		http.Error(w, "only lawyers can create a profile", http.StatusForbidden)
		return
	}
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || len(req.Specialties) == 0 {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	if req.ConsultRateCents < 0 {
		http.Error(w, "consult_rate_cents must be >= 0", http.StatusBadRequest)
		return
	}
	profile, err := h.svc.CreateProfile(r.Context(), accountID, req.Name, req.Bio, req.Specialties, req.ConsultRateCents)
	if err != nil {
		h.log.Error("create lawyer profile failed", "error", err)
		http.Error(w, "create profile failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(profileToResponse(profile))
}

// ListLawyers is public: clients browse the directory before signing up.
func (h *Handler) ListLawyers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListLawyers(r.Context())
	if err != nil {
		h.log.Error("list lawyers failed", "error", err)
		http.Error(w, "list lawyers failed", http.StatusInternalServerError)
		return
	}
	resp := make([]LawyerProfileResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, profileToResponse(p))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMyProfile returns the caller's own directory profile.
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := h.accountFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleLawyer {
		http.Error(w, "only lawyers have a profile", http.StatusForbidden)
		return
	}
	profile, err := h.svc.GetByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get lawyer profile failed", "error", err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(profileToResponse(profile))
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

func profileToResponse(p *LawyerProfile) LawyerProfileResponse {
	return LawyerProfileResponse{
		ID:               p.ID.String(),
		AccountID:        p.AccountID.String(),
		Name:             p.Name,
		Slug:             p.Slug,
		Bio:              p.Bio,
		Specialties:      p.Specialties,
		ConsultRateCents: p.ConsultRateCents,
		ReputationScore:  p.ReputationScore,
		TotalCases:       p.TotalCases,
	}
}
