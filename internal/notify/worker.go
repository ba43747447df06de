package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/lexbridge/backend/internal/rabbitmq"
)

type PublishNotificationArgs struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

func (PublishNotificationArgs) Kind() string { return "publish_notification" }

// notificationEvent is the wire shape pushed to the broker.
type notificationEvent struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	CaseID      uuid.UUID `json:"case_id"`
	Kind        string    `json:"kind"`
	Payload     any       `json:"payload,omitempty"`
}

// PublishWorker drains outbox rows to RabbitMQ. MarkPublished is conditional,
// so a redelivered job after a crash publishes at most one duplicate and
// never stamps twice.
type PublishWorker struct {
	river.WorkerDefaults[PublishNotificationArgs]
	store     Store
	publisher rabbitmq.Publisher
	log       *slog.Logger
}

func NewPublishWorker(store Store, publisher rabbitmq.Publisher, log *slog.Logger) *PublishWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PublishWorker{store: store, publisher: publisher, log: log}
}

func (w *PublishWorker) Work(ctx context.Context, job *river.Job[PublishNotificationArgs]) error {
	n, err := w.store.GetByID(ctx, job.Args.NotificationID)
	if err != nil {
		return fmt.Errorf("load notification %s: %w", job.Args.NotificationID, err)
	}
	if n.PublishedAt != nil {
		return nil
	}

	event := notificationEvent{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		CaseID:      n.CaseID,
		Kind:        n.Kind,
	}
	if len(n.Payload) > 0 {
		event.Payload = n.Payload
	}
	routingKey := "notification." + n.Kind
	if err := w.publisher.Publish(ctx, rabbitmq.NotificationExchange, routingKey, event); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}

	stamped, err := w.store.MarkPublished(ctx, n.ID)
	if err != nil {
		return fmt.Errorf("mark published %s: %w", n.ID, err)
	}
	if !stamped {
		w.log.Info("notification already stamped by a racing worker", "notification_id", n.ID)
	}
	return nil
}
