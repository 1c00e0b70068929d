package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/repository"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

const (
	appointmentResource = "appointment"
	outcomeAccepted     = "accepted"
	operationCreate     = "create"
	operationReschedule = "reschedule"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type bookingLocker interface {
	WithBookingLock(ctx context.Context, actingID string, weekDay int, fn func(store repository.BookingStore) error) error
	Reader() repository.BookingStore
}

type appointmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	UpdateNotes(ctx context.Context, id string, complaint, prescription *string) error
	Delete(ctx context.Context, id string) (bool, error)
}

type patientChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type bookingNotifier interface {
	NotifyBooking(ctx context.Context, kind models.NotificationKind, appt *models.Appointment)
}

type bookingIdempotency interface {
	Enabled() bool
	Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (id string, replayed bool, err error)
}

// AppointmentServiceConfig tunes the booking write path.
type AppointmentServiceConfig struct {
	// RetryAttempts is how many times a booking that lost a lock race is retried.
	RetryAttempts int
}

// AppointmentService books, reschedules and cancels appointments.
type AppointmentService struct {
	bookings     bookingLocker
	appointments appointmentStore
	patients     patientChecker
	checker      *ConflictChecker
	notifier     bookingNotifier
	idempotency  bookingIdempotency
	audit        auditLogger
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          AppointmentServiceConfig
}

// NewAppointmentService builds an AppointmentService. notifier, idempotency, audit and
// metrics are optional.
func NewAppointmentService(
	bookings bookingLocker,
	appointments appointmentStore,
	patients patientChecker,
	checker *ConflictChecker,
	notifier bookingNotifier,
	idempotency bookingIdempotency,
	audit auditLogger,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AppointmentServiceConfig,
) *AppointmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if checker == nil {
		checker = NewConflictChecker(logger)
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	return &AppointmentService{
		bookings:     bookings,
		appointments: appointments,
		patients:     patients,
		checker:      checker,
		notifier:     notifier,
		idempotency:  idempotency,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// Check runs the conflict checker without writing or locking.
func (s *AppointmentService) Check(ctx context.Context, req dto.CreateAppointmentRequest) (*Admission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid appointment payload")
	}
	candidate, err := candidateFrom(req.ActingID, req.ScheduledDay, *req.StartTime, req.EndTime, "")
	if err != nil {
		return nil, err
	}
	return s.checker.Validate(ctx, s.bookings.Reader(), candidate)
}

// Create books a new appointment.
func (s *AppointmentService) Create(ctx context.Context, req dto.CreateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid appointment payload")
	}
	if err := authorizePatient(actor, req.PatientID); err != nil {
		return nil, err
	}
	candidate, err := candidateFrom(req.ActingID, req.ScheduledDay, *req.StartTime, req.EndTime, "")
	if err != nil {
		return nil, err
	}
	if err := s.ensurePatient(ctx, req.PatientID); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		Complaint:    req.Complaint,
		Prescription: req.Prescription,
		ScheduledDay: candidate.Day,
		StartTime:    candidate.Start,
		PatientID:    req.PatientID,
		ActingID:     req.ActingID,
	}
	err = s.book(ctx, operationCreate, candidate, func(ctx context.Context, store repository.BookingStore, admission *Admission) error {
		end := admission.End
		appt.EndTime = &end
		return store.InsertAppointment(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, actor, models.AuditActionAppointmentCreate, models.NotificationBooked, appt)
	return appt, nil
}

// CreateIdempotent books an appointment once per idempotency key. replayed reports whether
// the appointment was created by an earlier request carrying the same key.
func (s *AppointmentService) CreateIdempotent(ctx context.Context, key string, req dto.CreateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, bool, error) {
	if key == "" || s.idempotency == nil || !s.idempotency.Enabled() {
		appt, err := s.Create(ctx, req, actor)
		return appt, false, err
	}

	var created *models.Appointment
	id, replayed, err := s.idempotency.Do(ctx, key, func(ctx context.Context) (string, error) {
		appt, err := s.Create(ctx, req, actor)
		if err != nil {
			return "", err
		}
		created = appt
		return appt.ID, nil
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		return created, false, nil
	}

	s.metrics.RecordIdempotentReplay()
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return appt, true, nil
}

// Reschedule moves an appointment to a new acting, day or time. The appointment itself is
// excluded from the overlap count.
func (s *AppointmentService) Reschedule(ctx context.Context, id string, req dto.RescheduleAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid appointment payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePatient(actor, current.PatientID); err != nil {
		return nil, err
	}
	candidate, err := candidateFrom(req.ActingID, req.ScheduledDay, *req.StartTime, req.EndTime, id)
	if err != nil {
		return nil, err
	}
	if req.PatientID != "" && req.PatientID != current.PatientID {
		if err := authorizePatient(actor, req.PatientID); err != nil {
			return nil, err
		}
		if err := s.ensurePatient(ctx, req.PatientID); err != nil {
			return nil, err
		}
		current.PatientID = req.PatientID
	}

	current.ActingID = candidate.ActingID
	current.ScheduledDay = candidate.Day
	current.StartTime = candidate.Start
	if req.Complaint != nil {
		current.Complaint = *req.Complaint
	}
	if req.Prescription != nil {
		current.Prescription = *req.Prescription
	}
	err = s.book(ctx, operationReschedule, candidate, func(ctx context.Context, store repository.BookingStore, admission *Admission) error {
		end := admission.End
		current.EndTime = &end
		return store.UpdateAppointment(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, actor, models.AuditActionAppointmentReschedule, models.NotificationRescheduled, current)
	return current, nil
}

// Get returns an appointment by ID.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, internalError(err, "failed to load appointment")
	}
	return appt, nil
}

// GetFor returns an appointment, scoping patients to their own bookings.
func (s *AppointmentService) GetFor(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePatient(actor, appt.PatientID); err != nil {
		return nil, err
	}
	return appt, nil
}

// List returns appointments newest first with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, q dto.AppointmentQuery, actor *models.JWTClaims) ([]models.Appointment, *models.Pagination, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, validationError(err, "invalid appointment query")
	}
	filter := models.AppointmentFilter{
		ActingID:  q.ActingID,
		PatientID: q.PatientID,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	if actor != nil && actor.Role == models.RolePatient {
		filter.PatientID = actor.PatientID
	}
	if q.Day != "" {
		day, err := parseDayField(q.Day, "day")
		if err != nil {
			return nil, nil, err
		}
		filter.Day = &day
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	items, total, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list appointments")
	}
	if items == nil {
		items = []models.Appointment{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateNotes changes complaint and prescription. The slot is not re-checked.
func (s *AppointmentService) UpdateNotes(ctx context.Context, id string, req dto.UpdateAppointmentNotesRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid notes payload")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.appointments.UpdateNotes(ctx, id, req.Complaint, req.Prescription); err != nil {
		return nil, internalError(err, "failed to update appointment notes")
	}
	return s.Get(ctx, id)
}

// Cancel deletes an appointment.
func (s *AppointmentService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) error {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizePatient(actor, appt.PatientID); err != nil {
		return err
	}
	deleted, err := s.appointments.Delete(ctx, id)
	if err != nil {
		return internalError(err, "failed to cancel appointment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	s.afterWrite(ctx, actor, models.AuditActionAppointmentCancel, models.NotificationCancelled, appt)
	return nil
}

type bookingWrite func(ctx context.Context, store repository.BookingStore, admission *Admission) error

// book admits and writes a candidate under the (acting, weekday) lock. A lost race is retried
// RetryAttempts times and then reported as a full slot.
func (s *AppointmentService) book(ctx context.Context, operation string, candidate BookingCandidate, write bookingWrite) error {
	attempts := s.cfg.RetryAttempts + 1
	for attempt := 1; ; attempt++ {
		started := time.Now()
		err := s.bookings.WithBookingLock(ctx, candidate.ActingID, candidate.Day.WeekDay(), func(store repository.BookingStore) error {
			admission, err := s.checker.Validate(ctx, store, candidate)
			if err != nil {
				return err
			}
			return write(ctx, store, admission)
		})
		s.metrics.ObserveDBQuery("booking_tx", time.Since(started))
		if err == nil {
			s.metrics.RecordBookingOutcome(operation, outcomeAccepted)
			return nil
		}

		if appErrors.HasCode(err, appErrors.ErrBookingConflict.Code) {
			if attempt < attempts {
				s.metrics.RecordBookingRetry()
				s.logger.Warn("booking lost lock race, retrying",
					zap.String("acting_id", candidate.ActingID),
					zap.String("day", candidate.Day.String()),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
			s.metrics.RecordBookingOutcome(operation, appErrors.ErrSlotFull.Code)
			full := appErrors.WithField(appErrors.Clone(appErrors.ErrSlotFull, "the slot was taken by a concurrent booking"), "start_time", ReasonSlotFull)
			full.Err = err
			return full
		}

		appErr := appErrors.FromError(err)
		s.metrics.RecordBookingOutcome(operation, appErr.Code)
		if appErr.Status >= 500 {
			s.logger.Error("booking failed",
				zap.String("acting_id", candidate.ActingID),
				zap.String("day", candidate.Day.String()),
				zap.Error(err),
			)
		}
		return appErr
	}
}

func (s *AppointmentService) ensurePatient(ctx context.Context, patientID string) error {
	exists, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return internalError(err, "failed to load patient")
	}
	if !exists {
		return notFoundField("patient_id", "patient not found")
	}
	return nil
}

func (s *AppointmentService) afterWrite(ctx context.Context, actor *models.JWTClaims, action string, kind models.NotificationKind, appt *models.Appointment) {
	if s.notifier != nil {
		s.notifier.NotifyBooking(ctx, kind, appt)
	}
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"acting_id":     appt.ActingID,
		"patient_id":    appt.PatientID,
		"scheduled_day": appt.ScheduledDay.String(),
		"start_time":    int(appt.StartTime),
	})
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   appointmentResource,
		ResourceID: &appt.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "appointment-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record appointment audit", zap.Error(err))
	}
}

func candidateFrom(actingID, rawDay string, start int, end *int, excludeID string) (BookingCandidate, error) {
	day, err := parseDayField(rawDay, "scheduled_day")
	if err != nil {
		return BookingCandidate{}, err
	}
	candidate := BookingCandidate{
		ActingID:  actingID,
		Day:       day,
		Start:     models.MinuteOfDay(start),
		ExcludeID: excludeID,
	}
	if end != nil {
		e := models.MinuteOfDay(*end)
		candidate.End = &e
	}
	if err := checkCandidateRange(candidate); err != nil {
		return BookingCandidate{}, err
	}
	return candidate, nil
}

// authorizePatient keeps patient tokens scoped to their own appointments.
func authorizePatient(actor *models.JWTClaims, patientID string) error {
	if actor == nil || actor.Role != models.RolePatient {
		return nil
	}
	if actor.PatientID == "" || actor.PatientID != patientID {
		return appErrors.Clone(appErrors.ErrForbidden, "patients may only manage their own appointments")
	}
	return nil
}
