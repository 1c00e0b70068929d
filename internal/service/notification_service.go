package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/pkg/jobs"
)

// JobTypeNotification routes booking notifications on the background queue.
const JobTypeNotification = "notification"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	DrainPending(ctx context.Context, limit int) ([]models.Notification, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationService queues patient notifications for booking events and hands pending
// ones to the delivery gateway.
type NotificationService struct {
	repo    notificationStore
	queue   jobDispatcher
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, queue jobDispatcher, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, queue: queue, logger: logger, enabled: enabled}
}

// NotifyBooking enqueues a notification for appt. Failures are logged and never surface to
// the booking that triggered them.
func (s *NotificationService) NotifyBooking(ctx context.Context, kind models.NotificationKind, appt *models.Appointment) {
	if s == nil || !s.enabled || s.queue == nil || appt == nil {
		return
	}
	appointmentID := appt.ID
	n := models.Notification{
		PatientID:     appt.PatientID,
		AppointmentID: &appointmentID,
		Kind:          kind,
		Message:       notificationMessage(kind, appt),
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeNotification, Payload: n}); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("appointment_id", appt.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// Handle persists a queued notification.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("dropping notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// DrainPending returns unsent notifications grouped by patient, oldest first, and marks
// them sent.
func (s *NotificationService) DrainPending(ctx context.Context, limit int) (map[string][]string, error) {
	pending, err := s.repo.DrainPending(ctx, limit)
	if err != nil {
		return nil, internalError(err, "failed to drain notifications")
	}
	grouped := make(map[string][]string)
	for _, n := range pending {
		grouped[n.PatientID] = append(grouped[n.PatientID], n.Message)
	}
	return grouped, nil
}

func notificationMessage(kind models.NotificationKind, appt *models.Appointment) string {
	when := fmt.Sprintf("%s at %s", appt.ScheduledDay, appt.StartTime)
	switch kind {
	case models.NotificationRescheduled:
		return fmt.Sprintf("Your appointment was moved to %s.", when)
	case models.NotificationCancelled:
		return fmt.Sprintf("Your appointment on %s was cancelled.", when)
	default:
		return fmt.Sprintf("Your appointment is confirmed for %s.", when)
	}
}
