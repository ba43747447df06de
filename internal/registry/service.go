package registry

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type Service interface {
	CreateProfile(ctx context.Context, accountID uuid.UUID, name, bio string, specialties []string, consultRateCents int32) (*LawyerProfile, error)
	ListLawyers(ctx context.Context) ([]*LawyerProfile, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*LawyerProfile, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) *service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

var slugSanitize = regexp.MustCompile(`[^a-z0-9-]+`)

// normalizeSpecialties lowercases each practice area so matching is
// case-insensitive.
func normalizeSpecialties(specialties []string) []string {
	out := make([]string, len(specialties))
	for i, s := range specialties {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func slugFromName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugSanitize.ReplaceAllString(s, "")
	if s == "" {
		s = "lawyer"
	}
	return s + "-" + uuid.New().String()[:8]
}

func (s *service) CreateProfile(ctx context.Context, accountID uuid.UUID, name, bio string, specialties []string, consultRateCents int32) (*LawyerProfile, error) {
	slug := slugFromName(name)
	return s.repo.Create(ctx, CreateParams{
		AccountID:        accountID,
		Name:             name,
		Slug:             slug,
		Bio:              bio,
		Specialties:      normalizeSpecialties(specialties),
		ConsultRateCents: consultRateCents,
	})
}

func (s *service) ListLawyers(ctx context.Context) ([]*LawyerProfile, error) {
	return s.repo.List(ctx)
}

func (s *service) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*LawyerProfile, error) {
	return s.repo.GetByAccountID(ctx, accountID)
}
