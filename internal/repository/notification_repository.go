package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/pkg/database"
)

const notificationColumns = "id, patient_id, appointment_id, kind, message, sent, created_at, sent_at"

// NotificationRepository persists patient notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a pending notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, patient_id, appointment_id, kind, message, sent, created_at, sent_at)
VALUES (:id, :patient_id, :appointment_id, :kind, :message, :sent, :created_at, :sent_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// DrainPending returns up to limit unsent notifications, oldest first, and marks them sent
// in the same transaction. Rows locked by a concurrent drain are skipped.
func (r *NotificationRepository) DrainPending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var drained []models.Notification
	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM notifications WHERE sent = FALSE ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED`, notificationColumns)
		if err := tx.SelectContext(ctx, &drained, query, limit); err != nil {
			return fmt.Errorf("select pending notifications: %w", err)
		}
		if len(drained) == 0 {
			return nil
		}

		ids := make([]string, len(drained))
		for i := range drained {
			ids[i] = drained[i].ID
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE notifications SET sent = TRUE, sent_at = $1 WHERE id = ANY($2)`, now, pq.Array(ids)); err != nil {
			return fmt.Errorf("mark notifications sent: %w", err)
		}
		for i := range drained {
			drained[i].Sent = true
			drained[i].SentAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}
