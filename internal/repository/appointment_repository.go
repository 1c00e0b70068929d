package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medagenda/booking-api/internal/models"
)

const appointmentColumns = "id, complaint, prescription, scheduled_day, start_time, end_time, patient_id, acting_id, created_at, updated_at"

// AppointmentRepository manages persistence for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs an AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindByID fetches an appointment by ID.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// List returns appointments matching filters, newest first, along with total count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ActingID != "" {
		conditions = append(conditions, fmt.Sprintf("acting_id = $%d", len(args)+1))
		args = append(args, filter.ActingID)
	}
	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Day != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_day = $%d", len(args)+1))
		args = append(args, *filter.Day)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY scheduled_day DESC, start_time DESC LIMIT %d OFFSET %d", appointmentColumns, base, size, (page-1)*size)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return appts, total, nil
}

// ListOnDay returns the appointments of an acting on a day ordered by start time.
func (r *AppointmentRepository) ListOnDay(ctx context.Context, actingID string, day models.Date) ([]models.Appointment, error) {
	return selectAppointmentsOnDay(ctx, r.db, actingID, day)
}

// ListForActingsBetween returns appointments of the given actings with from <= scheduled_day <= to.
func (r *AppointmentRepository) ListForActingsBetween(ctx context.Context, actingIDs []string, from, to models.Date) ([]models.Appointment, error) {
	if len(actingIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM appointments
WHERE acting_id = ANY($1) AND scheduled_day BETWEEN $2 AND $3
ORDER BY scheduled_day, start_time`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, pq.Array(actingIDs), from, to); err != nil {
		return nil, fmt.Errorf("list appointments in range: %w", err)
	}
	return appts, nil
}

// UpdateNotes changes complaint and prescription without touching the slot.
func (r *AppointmentRepository) UpdateNotes(ctx context.Context, id string, complaint, prescription *string) error {
	set := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if complaint != nil {
		args = append(args, *complaint)
		set = append(set, fmt.Sprintf("complaint = $%d", len(args)))
	}
	if prescription != nil {
		args = append(args, *prescription)
		set = append(set, fmt.Sprintf("prescription = $%d", len(args)))
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, time.Now().UTC())
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE appointments SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update appointment notes: %w", err)
	}
	return nil
}

// Delete removes an appointment. It reports whether a row existed.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete appointment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete appointment rows affected: %w", err)
	}
	return affected > 0, nil
}

func selectAppointmentsOnDay(ctx context.Context, q sqlx.QueryerContext, actingID string, day models.Date) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE acting_id = $1 AND scheduled_day = $2 ORDER BY start_time", appointmentColumns)
	var appts []models.Appointment
	if err := sqlx.SelectContext(ctx, q, &appts, query, actingID, day); err != nil {
		return nil, fmt.Errorf("list appointments on day: %w", err)
	}
	return appts, nil
}

func insertAppointment(ctx context.Context, e sqlx.ExtContext, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	const query = `INSERT INTO appointments (id, complaint, prescription, scheduled_day, start_time, end_time, patient_id, acting_id, created_at, updated_at)
VALUES (:id, :complaint, :prescription, :scheduled_day, :start_time, :end_time, :patient_id, :acting_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, query, appt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func updateAppointment(ctx context.Context, e sqlx.ExtContext, appt *models.Appointment) error {
	appt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET complaint = :complaint, prescription = :prescription, scheduled_day = :scheduled_day,
start_time = :start_time, end_time = :end_time, patient_id = :patient_id, acting_id = :acting_id, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, e, query, appt); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}
