package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexbridge/backend/internal/models"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, case_id, kind, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, n.ID, n.RecipientID, n.CaseID, n.Kind, n.Payload).Scan(&n.CreatedAt)
}

func (r *NotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := r.pool.QueryRow(ctx, `
		SELECT id, recipient_id, case_id, kind, payload, created_at, published_at
		FROM notifications WHERE id = $1
	`, id).Scan(&n.ID, &n.RecipientID, &n.CaseID, &n.Kind, &n.Payload, &n.CreatedAt, &n.PublishedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*models.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, case_id, kind, payload, created_at, published_at
		FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC
	`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.CaseID, &n.Kind, &n.Payload, &n.CreatedAt, &n.PublishedAt); err != nil {
			return nil, err
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}

// MarkPublished stamps published_at once. The condition keeps a redelivered
// job from stamping twice.
func (r *NotificationRepo) MarkPublished(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET published_at = now()
		WHERE id = $1 AND published_at IS NULL
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
