package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func testDay(t *testing.T, raw string) models.Date {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}

var blockRowColumns = []string{"id", "acting_id", "start_date", "end_date", "start_time", "end_time", "max_visits", "week_day", "slot_interval", "created_at", "updated_at"}
var appointmentRowColumns = []string{"id", "complaint", "prescription", "scheduled_day", "start_time", "end_time", "patient_id", "acting_id", "created_at", "updated_at"}

func TestBookingRepositoryWithBookingLockCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db, 3*time.Second)
	day := testDay(t, "2024-01-03")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '3000ms'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedule_blocks WHERE acting_id = $1 AND week_day = $2 FOR UPDATE")).
		WithArgs("acting-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("block-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_blocks WHERE acting_id = $1 AND week_day = $2 AND start_date <= $3")).
		WithArgs("acting-1", 2, day.Time).
		WillReturnRows(sqlmock.NewRows(blockRowColumns).
			AddRow("block-1", "acting-1", day.Time, nil, 540, 720, 1, 2, 30, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE acting_id = $1 AND scheduled_day = $2 ORDER BY start_time")).
		WithArgs("acting-1", day.Time).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).
			AddRow("appt-0", "", "", day.Time, 540, nil, "patient-0", "acting-1", time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.WithBookingLock(context.Background(), "acting-1", day.WeekDay(), func(store BookingStore) error {
		blocks, err := store.ActiveBlocks(context.Background(), "acting-1", day)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, models.MinuteOfDay(540), blocks[0].StartTime)
		assert.Nil(t, blocks[0].EndDate)

		appts, err := store.AppointmentsOn(context.Background(), "acting-1", day)
		require.NoError(t, err)
		require.Len(t, appts, 1)
		assert.Nil(t, appts[0].EndTime)

		end := models.MinuteOfDay(630)
		return store.InsertAppointment(context.Background(), &models.Appointment{
			ActingID: "acting-1", PatientID: "patient-1", ScheduledDay: day, StartTime: 600, EndTime: &end,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryRollsBackOnRejection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("acting-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.WithBookingLock(context.Background(), "acting-1", 2, func(store BookingStore) error {
		return appErrors.ErrSlotFull
	})
	require.ErrorIs(t, err, appErrors.ErrSlotFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryMapsLockTimeoutToConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("acting-1", 4).
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	called := false
	err := repo.WithBookingLock(context.Background(), "acting-1", 4, func(store BookingStore) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.Is(err, appErrors.ErrBookingConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryKeepsUnexpectedErrors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db, 0)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := repo.WithBookingLock(context.Background(), "acting-1", 0, func(store BookingStore) error { return nil })
	require.Error(t, err)
	assert.False(t, appErrors.HasCode(err, appErrors.ErrBookingConflict.Code))
}

func TestBookingReaderActingExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM actings WHERE id = $1)")).
		WithArgs("acting-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.Reader().ActingExists(context.Background(), "acting-9")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
