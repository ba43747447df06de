package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexbridge/backend/internal/models"
	"github.com/lexbridge/backend/internal/reservation"
)

var (
	ErrNotCaseOwner  = errors.New("caller is not the case owner")
	ErrCaseNotActive = errors.New("case is not active")
)

// Store is the case persistence interface; *Repository implements it.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, c *models.LegalCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LegalCase, error)
	HireTx(ctx context.Context, tx pgx.Tx, caseID, lawyerID uuid.UUID, ratingDeadline time.Time) (bool, error)
	Close(ctx context.Context, caseID uuid.UUID, feedback string) (bool, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.LegalCase, error)
	ListOpen(ctx context.Context) ([]*models.LegalCase, error)
	InterestedLawyers(ctx context.Context, caseID uuid.UUID) ([]*InterestedLawyer, error)
}

// Notifier delivers outbound events. Delivery is fire-and-forget: a failure
// never rolls back the state transition that produced the event.
type Notifier interface {
	Notify(ctx context.Context, recipientID, caseID uuid.UUID, kind string, payload any) error
}

// Reputation rolls a closing rating into the lawyer's directory profile.
// Best effort, like notifications: the close commits regardless.
type Reputation interface {
	RecordCaseClosed(ctx context.Context, accountID uuid.UUID, rating float64) error
}

type PublishCaseInput struct {
	Title        string
	Details      string
	PracticeArea string
}

type Service interface {
	PublishCase(ctx context.Context, clientID uuid.UUID, in PublishCaseInput) (*models.LegalCase, error)
	ExpressInterest(ctx context.Context, lawyerID, caseID uuid.UUID) error
	HireLawyer(ctx context.Context, clientID, caseID, lawyerID uuid.UUID) error
	CloseCase(ctx context.Context, clientID, caseID uuid.UUID, feedback string, rating float64) error
	GetCase(ctx context.Context, id uuid.UUID) (*models.LegalCase, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.LegalCase, error)
	ListOpen(ctx context.Context) ([]*models.LegalCase, error)
	InterestedLawyers(ctx context.Context, caseID uuid.UUID) ([]*InterestedLawyer, error)
}

type service struct {
	store        Store
	reservations reservation.Manager
	notifier     Notifier
	reputation   Reputation
	reserveCost  int
	hireCost     int
	ratingWindow time.Duration
	log          *slog.Logger
}

func NewService(store Store, reservations reservation.Manager, notifier Notifier, reputation Reputation, reserveCost, hireCost int, ratingWindow time.Duration, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		store:        store,
		reservations: reservations,
		notifier:     notifier,
		reputation:   reputation,
		reserveCost:  reserveCost,
		hireCost:     hireCost,
		ratingWindow: ratingWindow,
		log:          log,
	}
}

var _ Service = (*service)(nil)

func (s *service) PublishCase(ctx context.Context, clientID uuid.UUID, in PublishCaseInput) (*models.LegalCase, error) {
	c := &models.LegalCase{
		ID:           uuid.New(),
		ClientID:     clientID,
		Title:        in.Title,
		Details:      in.Details,
		PracticeArea: in.PracticeArea,
		Status:       models.CaseStatusOpen,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	return c, nil
}

// ExpressInterest escrows the reserve cost for (lawyer, case) and tells the
// client. The case stays open no matter how many lawyers bid.
func (s *service) ExpressInterest(ctx context.Context, lawyerID, caseID uuid.UUID) error {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return err
	}
	if _, err := s.reservations.CreateReservation(ctx, lawyerID, caseID, s.reserveCost); err != nil {
		return err
	}
	s.notify(ctx, c.ClientID, caseID, models.NotifyNewProposal, map[string]string{
		"lawyer_id": lawyerID.String(),
	})
	return nil
}

// HireLawyer is the open -> active transition. The reservation consume and
// the case flip commit as one transaction: if the consume fails, the case
// stays open and lawyer_id stays unset.
func (s *service) HireLawyer(ctx context.Context, clientID, caseID, lawyerID uuid.UUID) error {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return err
	}
	if c.ClientID != clientID {
		return ErrNotCaseOwner
	}
	if c.Status != models.CaseStatusOpen {
		return reservation.ErrCaseNotOpen
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin hire: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.reservations.ConsumeReservationTx(ctx, tx, lawyerID, caseID, s.hireCost); err != nil {
		return err
	}
	ok, err := s.store.HireTx(ctx, tx, caseID, lawyerID, time.Now().Add(s.ratingWindow))
	if err != nil {
		return fmt.Errorf("flip case active: %w", err)
	}
	if !ok {
		// A racing hire got there first.
		return reservation.ErrCaseNotOpen
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit hire: %w", err)
	}

	// Reservations of the other interested lawyers are left alone; they run
	// out their own TTL and are refunded by the sweep.
	s.notify(ctx, lawyerID, caseID, models.NotifyProposalAccepted, map[string]string{
		"client_id": clientID.String(),
	})
	return nil
}

// CloseCase is the active -> closed transition. A rating of 0 means the
// client declined to rate; anything above rolls into the lawyer's profile.
func (s *service) CloseCase(ctx context.Context, clientID, caseID uuid.UUID, feedback string, rating float64) error {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return err
	}
	if c.ClientID != clientID {
		return ErrNotCaseOwner
	}
	ok, err := s.store.Close(ctx, caseID, feedback)
	if err != nil {
		return fmt.Errorf("close case: %w", err)
	}
	if !ok {
		return ErrCaseNotActive
	}
	if rating > 0 && c.LawyerID != nil && s.reputation != nil {
		if err := s.reputation.RecordCaseClosed(ctx, *c.LawyerID, rating); err != nil {
			s.log.Warn("record reputation failed", "case_id", caseID, "lawyer_id", *c.LawyerID, "error", err)
		}
	}
	return nil
}

func (s *service) GetCase(ctx context.Context, id uuid.UUID) (*models.LegalCase, error) {
	return s.getCase(ctx, id)
}

func (s *service) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.LegalCase, error) {
	return s.store.ListByClient(ctx, clientID)
}

func (s *service) ListOpen(ctx context.Context) ([]*models.LegalCase, error) {
	return s.store.ListOpen(ctx)
}

func (s *service) InterestedLawyers(ctx context.Context, caseID uuid.UUID) ([]*InterestedLawyer, error) {
	return s.store.InterestedLawyers(ctx, caseID)
}

func (s *service) getCase(ctx context.Context, id uuid.UUID) (*models.LegalCase, error) {
	c, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) notify(ctx context.Context, recipientID, caseID uuid.UUID, kind string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, recipientID, caseID, kind, payload); err != nil {
		s.log.Warn("notification emit failed", "kind", kind, "case_id", caseID, "error", err)
	}
}
