package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/lexbridge/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Notification
	createErr error
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[uuid.UUID]*models.Notification)}
}

func (m *mockStore) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *n
	cp.CreatedAt = time.Now()
	m.rows[n.ID] = &cp
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	cp := *n
	return &cp, nil
}

func (m *mockStore) MarkPublished(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok || n.PublishedAt != nil {
		return false, nil
	}
	now := time.Now()
	n.PublishedAt = &now
	return true, nil
}

type published struct {
	exchange   string
	routingKey string
}

type mockPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, exchange, routingKey string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, published{exchange: exchange, routingKey: routingKey})
	return nil
}

func (m *mockPublisher) Close() {}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ---------------------------------------------------------------------------
// Outbox tests
// ---------------------------------------------------------------------------

func TestNotifyPersistsAndEnqueues(t *testing.T) {
	store := newMockStore()
	var enqueued []PublishNotificationArgs
	outbox := NewOutbox(store, func(_ context.Context, args PublishNotificationArgs) error {
		enqueued = append(enqueued, args)
		return nil
	}, nil)

	recipient, caseID := uuid.New(), uuid.New()
	err := outbox.Notify(context.Background(), recipient, caseID, models.NotifyNewProposal, map[string]string{"lawyer_id": uuid.New().String()})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(store.rows) != 1 {
		t.Fatalf("expected 1 outbox row, got %d", len(store.rows))
	}
	if len(enqueued) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(enqueued))
	}
	for _, n := range store.rows {
		if n.RecipientID != recipient || n.Kind != models.NotifyNewProposal {
			t.Errorf("row mismatch: %+v", n)
		}
		if n.PublishedAt != nil {
			t.Error("row stamped published before the worker ran")
		}
		if enqueued[0].NotificationID != n.ID {
			t.Error("enqueued job references a different row")
		}
	}
}

// Insert failure must surface; nothing should be enqueued.
func TestNotifyCreateFailure(t *testing.T) {
	store := newMockStore()
	store.createErr = errors.New("db down")
	enqueues := 0
	outbox := NewOutbox(store, func(context.Context, PublishNotificationArgs) error {
		enqueues++
		return nil
	}, nil)

	err := outbox.Notify(context.Background(), uuid.New(), uuid.New(), models.NotifyNewProposal, nil)
	if err == nil {
		t.Fatal("expected error from failed insert")
	}
	if enqueues != 0 {
		t.Error("job enqueued despite failed insert")
	}
}

// Enqueue failure is swallowed: the row is the source of truth.
func TestNotifyEnqueueFailureStillPersists(t *testing.T) {
	store := newMockStore()
	outbox := NewOutbox(store, func(context.Context, PublishNotificationArgs) error {
		return errors.New("river down")
	}, nil)

	err := outbox.Notify(context.Background(), uuid.New(), uuid.New(), models.NotifyProposalAccepted, nil)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected persisted row, got %d", len(store.rows))
	}
}

// ---------------------------------------------------------------------------
// PublishWorker tests
// ---------------------------------------------------------------------------

func seedNotification(t *testing.T, store *mockStore) uuid.UUID {
	t.Helper()
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: uuid.New(),
		CaseID:      uuid.New(),
		Kind:        models.NotifyNewProposal,
	}
	if err := store.Create(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n.ID
}

func workerJob(id uuid.UUID) *river.Job[PublishNotificationArgs] {
	return &river.Job[PublishNotificationArgs]{Args: PublishNotificationArgs{NotificationID: id}}
}

func TestPublishWorkerPublishesAndStamps(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	worker := NewPublishWorker(store, pub, nil)

	id := seedNotification(t, store)
	if err := worker.Work(context.Background(), workerJob(id)); err != nil {
		t.Fatalf("Work: %v", err)
	}

	if pub.count() != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.count())
	}
	if got := pub.sent[0].routingKey; got != "notification.new_proposal" {
		t.Errorf("routing key: got %q", got)
	}
	n, _ := store.GetByID(context.Background(), id)
	if n.PublishedAt == nil {
		t.Error("row not stamped published")
	}
}

// A redelivered job for an already-published row is a no-op.
func TestPublishWorkerIdempotent(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	worker := NewPublishWorker(store, pub, nil)

	id := seedNotification(t, store)
	if err := worker.Work(context.Background(), workerJob(id)); err != nil {
		t.Fatal(err)
	}
	if err := worker.Work(context.Background(), workerJob(id)); err != nil {
		t.Fatal(err)
	}
	if pub.count() != 1 {
		t.Errorf("expected exactly 1 publish across redeliveries, got %d", pub.count())
	}
}

// Broker failure leaves the row unpublished so River retries the job.
func TestPublishWorkerBrokerFailure(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{err: errors.New("broker down")}
	worker := NewPublishWorker(store, pub, nil)

	id := seedNotification(t, store)
	if err := worker.Work(context.Background(), workerJob(id)); err == nil {
		t.Fatal("expected error so River retries")
	}
	n, _ := store.GetByID(context.Background(), id)
	if n.PublishedAt != nil {
		t.Error("row stamped despite failed publish")
	}
}
