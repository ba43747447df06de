package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/lexbridge/backend/internal/auth"
	"github.com/lexbridge/backend/internal/cases"
	"github.com/lexbridge/backend/internal/services"
)

// suggestionsHandler ranks lawyers for a case's practice area.
// Query params: rank (auto|cheapest|best_rated), max_rate_cents, limit.
func suggestionsHandler(casesSvc cases.Service, matcher *services.Matcher, authSvc auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if accountID, err := bearerAccountID(r, authSvc); err != nil || accountID == uuid.Nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		caseID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid case id", http.StatusBadRequest)
			return
		}
		c, err := casesSvc.GetCase(r.Context(), caseID)
		if err != nil {
			http.Error(w, "case not found", http.StatusNotFound)
			return
		}

		q := r.URL.Query()
		maxRate, _ := strconv.Atoi(q.Get("max_rate_cents"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 10
		}

		profiles, err := matcher.SuggestLawyers(r.Context(), c.PracticeArea, int32(maxRate), q.Get("rank"), limit)
		if err != nil {
			logger.Error("suggest lawyers failed", "case_id", caseID, "error", err)
			http.Error(w, "suggestions failed", http.StatusInternalServerError)
			return
		}

		type suggestion struct {
			AccountID        string   `json:"account_id"`
			Name             string   `json:"name"`
			Slug             string   `json:"slug"`
			Specialties      []string `json:"specialties"`
			ConsultRateCents int32    `json:"consult_rate_cents"`
			ReputationScore  float64  `json:"reputation_score"`
			TotalCases       int32    `json:"total_cases"`
		}
		out := make([]suggestion, 0, len(profiles))
		for _, p := range profiles {
			out = append(out, suggestion{
				AccountID:        p.AccountID.String(),
				Name:             p.Name,
				Slug:             p.Slug,
				Specialties:      p.Specialties,
				ConsultRateCents: p.ConsultRateCents,
				ReputationScore:  p.ReputationScore,
				TotalCases:       p.TotalCases,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func bearerAccountID(r *http.Request, authSvc auth.Service) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, nil
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, nil
	}
	id, _, err := authSvc.ValidateToken(r.Context(), token)
	return id, err
}
