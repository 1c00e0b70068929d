package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/pkg/database"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

// BookingStore is the read and write surface used while admitting a booking.
type BookingStore interface {
	ActingExists(ctx context.Context, actingID string) (bool, error)
	ActiveBlocks(ctx context.Context, actingID string, day models.Date) ([]models.ScheduleBlock, error)
	AppointmentsOn(ctx context.Context, actingID string, day models.Date) ([]models.Appointment, error)
	InsertAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointment(ctx context.Context, appt *models.Appointment) error
}

// BookingRepository serialises appointment writes per acting and weekday by locking the
// schedule block rows that govern them.
type BookingRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewBookingRepository constructs a BookingRepository. A zero lockTimeout waits indefinitely.
func NewBookingRepository(db *sqlx.DB, lockTimeout time.Duration) *BookingRepository {
	return &BookingRepository{db: db, lockTimeout: lockTimeout}
}

// WithBookingLock runs fn in a transaction holding FOR UPDATE locks on the acting's blocks for
// weekDay. Lock timeouts, deadlocks and serialization failures surface as ErrBookingConflict.
func (r *BookingRepository) WithBookingLock(ctx context.Context, actingID string, weekDay int, fn func(store BookingStore) error) error {
	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}

		var locked []string
		const lockQuery = `SELECT id FROM schedule_blocks WHERE acting_id = $1 AND week_day = $2 FOR UPDATE`
		if err := tx.SelectContext(ctx, &locked, lockQuery, actingID, weekDay); err != nil {
			return fmt.Errorf("lock schedule blocks: %w", err)
		}

		return fn(&bookingStore{q: tx})
	})
	if err != nil && database.IsContention(err) {
		return appErrors.Wrap(err, appErrors.ErrBookingConflict.Code, appErrors.ErrBookingConflict.Status, appErrors.ErrBookingConflict.Message)
	}
	return err
}

// Reader returns an unlocked BookingStore for dry-run checks.
func (r *BookingRepository) Reader() BookingStore {
	return &bookingStore{q: r.db}
}

type bookingStore struct {
	q sqlx.ExtContext
}

func (s *bookingStore) ActingExists(ctx context.Context, actingID string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists, `SELECT EXISTS(SELECT 1 FROM actings WHERE id = $1)`, actingID); err != nil {
		return false, fmt.Errorf("check acting: %w", err)
	}
	return exists, nil
}

func (s *bookingStore) ActiveBlocks(ctx context.Context, actingID string, day models.Date) ([]models.ScheduleBlock, error) {
	return selectActiveBlocks(ctx, s.q, actingID, day)
}

func (s *bookingStore) AppointmentsOn(ctx context.Context, actingID string, day models.Date) ([]models.Appointment, error) {
	return selectAppointmentsOnDay(ctx, s.q, actingID, day)
}

func (s *bookingStore) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	return insertAppointment(ctx, s.q, appt)
}

func (s *bookingStore) UpdateAppointment(ctx context.Context, appt *models.Appointment) error {
	return updateAppointment(ctx, s.q, appt)
}
