package cases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lexbridge/backend/internal/models"
	"github.com/lexbridge/backend/internal/reservation"
)

// ---------------------------------------------------------------------------
// In-memory mocks
// ---------------------------------------------------------------------------

type fakeTx struct{ done bool }

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}
func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}
func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested tx not supported")
}
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("unexpected CopyFrom")
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("unexpected SendBatch")
}
func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("unexpected Prepare")
}
func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("unexpected Exec")
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("unexpected Query")
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("unexpected QueryRow")
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

// ---

type mockStore struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*models.LegalCase
}

func newMockStore() *mockStore {
	return &mockStore{cases: make(map[uuid.UUID]*models.LegalCase)}
}

func (m *mockStore) Begin(ctx context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

func (m *mockStore) Create(_ context.Context, c *models.LegalCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.CreatedAt = time.Now()
	m.cases[c.ID] = &cp
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*models.LegalCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) HireTx(_ context.Context, _ pgx.Tx, caseID, lawyerID uuid.UUID, ratingDeadline time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok || c.Status != models.CaseStatusOpen {
		return false, nil
	}
	lid := lawyerID
	rd := ratingDeadline
	c.LawyerID = &lid
	c.Status = models.CaseStatusActive
	c.RatingDeadline = &rd
	return true, nil
}

func (m *mockStore) Close(_ context.Context, caseID uuid.UUID, feedback string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok || c.Status != models.CaseStatusActive {
		return false, nil
	}
	c.Status = models.CaseStatusClosed
	fb := feedback
	c.Feedback = &fb
	return true, nil
}

func (m *mockStore) ListByClient(_ context.Context, clientID uuid.UUID) ([]*models.LegalCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LegalCase
	for _, c := range m.cases {
		if c.ClientID == clientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) ListOpen(_ context.Context) ([]*models.LegalCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LegalCase
	for _, c := range m.cases {
		if c.Status == models.CaseStatusOpen {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) InterestedLawyers(_ context.Context, caseID uuid.UUID) ([]*InterestedLawyer, error) {
	return nil, nil
}

func (m *mockStore) get(id uuid.UUID) *models.LegalCase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cases[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// ---

// mockManager implements reservation.Manager with a flat status map so the
// tests can observe which reservations survived a hire.
type mockManager struct {
	mu         sync.Mutex
	statuses   map[string]string
	createErr  error
	consumeErr error
}

func newMockManager() *mockManager {
	return &mockManager{statuses: make(map[string]string)}
}

func resKey(lawyerID, caseID uuid.UUID) string {
	return lawyerID.String() + "|" + caseID.String()
}

func (m *mockManager) CreateReservation(_ context.Context, lawyerID, caseID uuid.UUID, _ int) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return uuid.Nil, m.createErr
	}
	key := resKey(lawyerID, caseID)
	if m.statuses[key] == models.ReservationStatusActive {
		return uuid.Nil, reservation.ErrDuplicateReservation
	}
	m.statuses[key] = models.ReservationStatusActive
	return uuid.New(), nil
}

func (m *mockManager) ConsumeReservation(ctx context.Context, lawyerID, caseID uuid.UUID, amount int) error {
	return m.ConsumeReservationTx(ctx, nil, lawyerID, caseID, amount)
}

func (m *mockManager) ConsumeReservationTx(_ context.Context, _ pgx.Tx, lawyerID, caseID uuid.UUID, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumeErr != nil {
		return m.consumeErr
	}
	key := resKey(lawyerID, caseID)
	if m.statuses[key] != models.ReservationStatusActive {
		return reservation.ErrReservationNotFound
	}
	m.statuses[key] = models.ReservationStatusConsumed
	return nil
}

func (m *mockManager) ExpireDueReservations(context.Context, time.Time) (int, error) { return 0, nil }

func (m *mockManager) TopUp(context.Context, uuid.UUID, int) (int, error) { return 0, nil }

func (m *mockManager) status(lawyerID, caseID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[resKey(lawyerID, caseID)]
}

// ---

type sentNote struct {
	recipientID uuid.UUID
	kind        string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNote
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, recipientID, caseID uuid.UUID, kind string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentNote{recipientID: recipientID, kind: kind})
	return nil
}

func (m *mockNotifier) all() []sentNote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentNote, len(m.sent))
	copy(out, m.sent)
	return out
}

// ---

type mockReputation struct {
	mu      sync.Mutex
	ratings map[uuid.UUID][]float64
	err     error
}

func (m *mockReputation) RecordCaseClosed(_ context.Context, accountID uuid.UUID, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.ratings == nil {
		m.ratings = make(map[uuid.UUID][]float64)
	}
	m.ratings[accountID] = append(m.ratings[accountID], rating)
	return nil
}

func (m *mockReputation) recorded(accountID uuid.UUID) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratings[accountID]
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const (
	testReserveCost  = 1
	testHireCost     = 3
	testRatingWindow = 14 * 24 * time.Hour
)

type fixture struct {
	store      *mockStore
	mgr        *mockManager
	notifier   *mockNotifier
	reputation *mockReputation
	svc        Service
	clientID   uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		store:      newMockStore(),
		mgr:        newMockManager(),
		notifier:   &mockNotifier{},
		reputation: &mockReputation{},
		clientID:   uuid.New(),
	}
	f.svc = NewService(f.store, f.mgr, f.notifier, f.reputation, testReserveCost, testHireCost, testRatingWindow, nil)
	return f
}

func (f *fixture) publish(t *testing.T) *models.LegalCase {
	t.Helper()
	c, err := f.svc.PublishCase(context.Background(), f.clientID, PublishCaseInput{
		Title: "Contract dispute", Details: "Supplier breached delivery terms", PracticeArea: "contract law",
	})
	if err != nil {
		t.Fatalf("PublishCase: %v", err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPublishCase(t *testing.T) {
	f := newFixture()
	c := f.publish(t)

	if c.Status != models.CaseStatusOpen {
		t.Errorf("status: got %q, want open", c.Status)
	}
	if c.LawyerID != nil {
		t.Error("lawyer_id set on publish")
	}
	if f.store.get(c.ID) == nil {
		t.Error("case not persisted")
	}
}

func TestExpressInterestNotifiesClient(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()

	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatalf("ExpressInterest: %v", err)
	}
	if got := f.mgr.status(lawyer, c.ID); got != models.ReservationStatusActive {
		t.Errorf("reservation status: got %q, want active", got)
	}
	// The case stays open: interest is a multi-bid phase.
	if got := f.store.get(c.ID).Status; got != models.CaseStatusOpen {
		t.Errorf("case status: got %q, want open", got)
	}
	sent := f.notifier.all()
	if len(sent) != 1 || sent[0].kind != models.NotifyNewProposal || sent[0].recipientID != f.clientID {
		t.Fatalf("notifications: got %+v, want one new_proposal to client", sent)
	}
}

func TestExpressInterestReservationFailureSendsNothing(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	f.mgr.createErr = reservation.ErrInsufficientBalance

	err := f.svc.ExpressInterest(context.Background(), uuid.New(), c.ID)
	if !errors.Is(err, reservation.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	if len(f.notifier.all()) != 0 {
		t.Error("notification sent despite failed reservation")
	}
}

func TestHireLawyer(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}
	before := time.Now()

	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, lawyer); err != nil {
		t.Fatalf("HireLawyer: %v", err)
	}

	got := f.store.get(c.ID)
	if got.Status != models.CaseStatusActive {
		t.Errorf("case status: got %q, want active", got.Status)
	}
	if got.LawyerID == nil || *got.LawyerID != lawyer {
		t.Errorf("lawyer_id: got %v, want %s", got.LawyerID, lawyer)
	}
	wantDeadline := before.Add(testRatingWindow)
	if got.RatingDeadline == nil ||
		got.RatingDeadline.Before(wantDeadline.Add(-time.Minute)) ||
		got.RatingDeadline.After(wantDeadline.Add(time.Minute)) {
		t.Errorf("rating_deadline: got %v, want ~%v", got.RatingDeadline, wantDeadline)
	}
	if s := f.mgr.status(lawyer, c.ID); s != models.ReservationStatusConsumed {
		t.Errorf("reservation status: got %q, want consumed", s)
	}

	sent := f.notifier.all()
	if len(sent) != 2 || sent[1].kind != models.NotifyProposalAccepted || sent[1].recipientID != lawyer {
		t.Fatalf("notifications: got %+v, want proposal_accepted to lawyer last", sent)
	}
}

// A failed consume must leave the case open and unassigned: no partial hire.
func TestHireLawyerConsumeFailureLeavesCaseOpen(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}
	f.mgr.consumeErr = reservation.ErrInsufficientBalance

	err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, lawyer)
	if !errors.Is(err, reservation.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	got := f.store.get(c.ID)
	if got.Status != models.CaseStatusOpen {
		t.Errorf("case status after failed hire: got %q, want open", got.Status)
	}
	if got.LawyerID != nil {
		t.Error("lawyer_id set despite failed hire")
	}
}

func TestHireLawyerWithoutReservation(t *testing.T) {
	f := newFixture()
	c := f.publish(t)

	err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, uuid.New())
	if !errors.Is(err, reservation.ErrReservationNotFound) {
		t.Fatalf("got %v, want ErrReservationNotFound", err)
	}
	if got := f.store.get(c.ID).Status; got != models.CaseStatusOpen {
		t.Errorf("case status: got %q, want open", got)
	}
}

func TestHireLawyerNotOwner(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}

	err := f.svc.HireLawyer(context.Background(), uuid.New(), c.ID, lawyer)
	if !errors.Is(err, ErrNotCaseOwner) {
		t.Fatalf("got %v, want ErrNotCaseOwner", err)
	}
	if s := f.mgr.status(lawyer, c.ID); s != models.ReservationStatusActive {
		t.Errorf("reservation touched by unauthorized hire: status %q", s)
	}
}

func TestHireLawyerCaseAlreadyActive(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	l1, l2 := uuid.New(), uuid.New()
	for _, l := range []uuid.UUID{l1, l2} {
		if err := f.svc.ExpressInterest(context.Background(), l, c.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, l1); err != nil {
		t.Fatal(err)
	}

	err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, l2)
	if !errors.Is(err, reservation.ErrCaseNotOpen) {
		t.Fatalf("got %v, want ErrCaseNotOpen", err)
	}
}

// Documented product decision: reservations of the lawyers who were not hired
// stay active until their own TTL runs out. They are not refunded early. Any
// change here must be intentional.
func TestHireLeavesOtherReservationsActive(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	l1, l2 := uuid.New(), uuid.New()
	for _, l := range []uuid.UUID{l1, l2} {
		if err := f.svc.ExpressInterest(context.Background(), l, c.ID); err != nil {
			t.Fatal(err)
		}
	}

	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, l1); err != nil {
		t.Fatalf("HireLawyer: %v", err)
	}

	if s := f.mgr.status(l1, c.ID); s != models.ReservationStatusConsumed {
		t.Errorf("hired lawyer's reservation: got %q, want consumed", s)
	}
	if s := f.mgr.status(l2, c.ID); s != models.ReservationStatusActive {
		t.Errorf("losing bidder's reservation: got %q, want active (no early refund)", s)
	}
}

// Notification failure must not undo the hire.
func TestHireSucceedsWhenNotifierFails(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}
	f.notifier.err = errors.New("broker down")

	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, lawyer); err != nil {
		t.Fatalf("HireLawyer: %v", err)
	}
	if got := f.store.get(c.ID).Status; got != models.CaseStatusActive {
		t.Errorf("case status: got %q, want active", got)
	}
}

func TestCloseCase(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}

	// Closing an open case is illegal.
	if err := f.svc.CloseCase(context.Background(), f.clientID, c.ID, "great work", 5); !errors.Is(err, ErrCaseNotActive) {
		t.Fatalf("close open case: got %v, want ErrCaseNotActive", err)
	}

	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, lawyer); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.CloseCase(context.Background(), f.clientID, c.ID, "great work", 5); err != nil {
		t.Fatalf("CloseCase: %v", err)
	}

	got := f.store.get(c.ID)
	if got.Status != models.CaseStatusClosed {
		t.Errorf("status: got %q, want closed", got.Status)
	}
	if got.Feedback == nil || *got.Feedback != "great work" {
		t.Errorf("feedback: got %v, want stored", got.Feedback)
	}
	if ratings := f.reputation.recorded(lawyer); len(ratings) != 1 || ratings[0] != 5 {
		t.Errorf("reputation ratings: got %v, want [5]", ratings)
	}
}

// A zero rating means the client skipped rating; the profile stays untouched.
func TestCloseCaseWithoutRating(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, lawyer); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.CloseCase(context.Background(), f.clientID, c.ID, "", 0); err != nil {
		t.Fatalf("CloseCase: %v", err)
	}
	if ratings := f.reputation.recorded(lawyer); len(ratings) != 0 {
		t.Errorf("reputation ratings: got %v, want none", ratings)
	}
}

// Reputation roll-up failure must not undo the close.
func TestCloseCaseSucceedsWhenReputationFails(t *testing.T) {
	f := newFixture()
	c := f.publish(t)
	lawyer := uuid.New()
	if err := f.svc.ExpressInterest(context.Background(), lawyer, c.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.HireLawyer(context.Background(), f.clientID, c.ID, lawyer); err != nil {
		t.Fatal(err)
	}
	f.reputation.err = errors.New("profile row missing")

	if err := f.svc.CloseCase(context.Background(), f.clientID, c.ID, "fine", 4); err != nil {
		t.Fatalf("CloseCase: %v", err)
	}
	if got := f.store.get(c.ID).Status; got != models.CaseStatusClosed {
		t.Errorf("status: got %q, want closed", got)
	}
}

func TestCloseCaseNotOwner(t *testing.T) {
	f := newFixture()
	c := f.publish(t)

	err := f.svc.CloseCase(context.Background(), uuid.New(), c.ID, "nope", 0)
	if !errors.Is(err, ErrNotCaseOwner) {
		t.Fatalf("got %v, want ErrNotCaseOwner", err)
	}
}
