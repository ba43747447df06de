package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lexbridge/backend/internal/registry"
)

// Ranking preferences for lawyer suggestions.
const (
	RankAuto      = "auto"
	RankCheapest  = "cheapest"
	RankBestRated = "best_rated"
)

// LawyerRepo is the minimal interface required for matching.
type LawyerRepo interface {
	ListBySpecialty(ctx context.Context, practiceArea string) ([]*registry.LawyerProfile, error)
}

// Matcher ranks lawyer profiles for a case based on the client's rate cap
// and ranking preference.
type Matcher struct {
	LawyerRepo LawyerRepo
}

// NewMatcher returns a new Matcher.
func NewMatcher(lawyerRepo LawyerRepo) *Matcher {
	return &Matcher{LawyerRepo: lawyerRepo}
}

// lawyerCandidate holds a profile and its scoring fields.
type lawyerCandidate struct {
	profile    *registry.LawyerProfile
	rateCents  int32
	reputation float64 // 0–5
	totalCases int32
}

// buildCandidates filters profiles by the rate cap and builds candidates
// with scoring fields. A cap of 0 means no cap.
func buildCandidates(profiles []*registry.LawyerProfile, maxRateCents int32, excludeID uuid.UUID) []lawyerCandidate {
	var candidates []lawyerCandidate
	for _, p := range profiles {
		if p.AccountID == excludeID {
			continue
		}
		if maxRateCents > 0 && p.ConsultRateCents > maxRateCents {
			continue
		}
		candidates = append(candidates, lawyerCandidate{
			profile:    p,
			rateCents:  p.ConsultRateCents,
			reputation: p.ReputationScore,
			totalCases: p.TotalCases,
		})
	}
	return candidates
}

func rankPreference(pref string) string {
	if pref != RankCheapest && pref != RankBestRated && pref != RankAuto {
		return RankAuto
	}
	return pref
}

// scoreAndSort sorts candidates by the given preference (best first).
func scoreAndSort(candidates []lawyerCandidate, pref string) {
	switch rankPreference(pref) {
	case RankCheapest:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].rateCents < candidates[j].rateCents
		})
		return
	case RankBestRated:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].reputation > candidates[j].reputation
		})
		return
	}

	// "auto": weighted score over normalized reputation, experience and rate
	var maxRate int32
	var maxCases int32
	for i := range candidates {
		if candidates[i].rateCents > maxRate {
			maxRate = candidates[i].rateCents
		}
		if candidates[i].totalCases > maxCases {
			maxCases = candidates[i].totalCases
		}
	}
	if maxRate <= 0 {
		maxRate = 1
	}
	if maxCases <= 0 {
		maxCases = 1
	}
	scores := make([]float64, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		repNorm := c.reputation / 5.0
		if repNorm > 1 {
			repNorm = 1
		}
		expNorm := float64(c.totalCases) / float64(maxCases)
		rateNorm := 1.0 - (float64(c.rateCents) / float64(maxRate))
		scores[i] = repNorm*0.5 + expNorm*0.25 + rateNorm*0.25
	}
	sort.Slice(candidates, func(i, j int) bool {
		return scores[i] > scores[j]
	})
}

// SuggestLawyers returns up to limit lawyers for the practice area, ranked
// by the given preference. A maxRateCents of 0 disables the rate cap.
func (m *Matcher) SuggestLawyers(ctx context.Context, practiceArea string, maxRateCents int32, pref string, limit int) ([]*registry.LawyerProfile, error) {
	profiles, err := m.LawyerRepo.ListBySpecialty(ctx, practiceArea)
	if err != nil {
		return nil, err
	}
	candidates := buildCandidates(profiles, maxRateCents, uuid.Nil)
	if len(candidates) == 0 {
		return nil, nil
	}
	scoreAndSort(candidates, pref)
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]*registry.LawyerProfile, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, candidates[i].profile)
	}
	return out, nil
}

// FindAlternatives returns up to 2 other lawyers for the practice area,
// excluding the given account. Used when a hire falls through.
func (m *Matcher) FindAlternatives(ctx context.Context, practiceArea string, maxRateCents int32, excludeAccountID uuid.UUID) ([]*registry.LawyerProfile, error) {
	profiles, err := m.LawyerRepo.ListBySpecialty(ctx, practiceArea)
	if err != nil {
		return nil, err
	}
	candidates := buildCandidates(profiles, maxRateCents, excludeAccountID)
	if len(candidates) == 0 {
		return nil, nil
	}
	scoreAndSort(candidates, RankAuto)
	max := 2
	if len(candidates) < max {
		max = len(candidates)
	}
	out := make([]*registry.LawyerProfile, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, candidates[i].profile)
	}
	return out, nil
}
