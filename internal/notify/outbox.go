package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lexbridge/backend/internal/models"
)

// Store is the notification persistence interface; repository.NotificationRepo
// implements it.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	MarkPublished(ctx context.Context, id uuid.UUID) (bool, error)
}

// EnqueueFunc schedules a publish job for a committed outbox row.
type EnqueueFunc func(ctx context.Context, args PublishNotificationArgs) error

// Outbox persists notifications and hands them to the background publisher.
// The row insert is the source of truth; a failed enqueue leaves the row
// unpublished rather than failing the caller.
type Outbox struct {
	store   Store
	enqueue EnqueueFunc
	log     *slog.Logger
}

func NewOutbox(store Store, enqueue EnqueueFunc, log *slog.Logger) *Outbox {
	if log == nil {
		log = slog.Default()
	}
	return &Outbox{store: store, enqueue: enqueue, log: log}
}

// Notify writes an outbox row and enqueues its publish job.
func (o *Outbox) Notify(ctx context.Context, recipientID, caseID uuid.UUID, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		CaseID:      caseID,
		Kind:        kind,
		Payload:     body,
	}
	if err := o.store.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	if o.enqueue != nil {
		if err := o.enqueue(ctx, PublishNotificationArgs{NotificationID: n.ID}); err != nil {
			o.log.Warn("enqueue notification publish failed; row stays unpublished",
				"notification_id", n.ID, "error", err)
		}
	}
	return nil
}
