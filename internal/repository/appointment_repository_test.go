package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/models"
)

func TestAppointmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAppointmentRepositoryListForActingsBetween(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)
	from := testDay(t, "2024-01-01")
	to := testDay(t, "2024-01-31")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE acting_id = ANY($1) AND scheduled_day BETWEEN $2 AND $3")).
		WithArgs(pq.Array([]string{"acting-1", "acting-2"}), from.Time, to.Time).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).
			AddRow("appt-1", "pain", "", testDay(t, "2024-01-03").Time, 600, 630, "patient-1", "acting-1", time.Now(), time.Now()))

	appts, err := repo.ListForActingsBetween(context.Background(), []string{"acting-1", "acting-2"}, from, to)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.NotNil(t, appts[0].EndTime)
	assert.Equal(t, models.MinuteOfDay(630), *appts[0].EndTime)
	require.NoError(t, mock.ExpectationsWereMet())

	none, err := repo.ListForActingsBetween(context.Background(), nil, from, to)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAppointmentRepositoryUpdateNotes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	prescription := "rest"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET prescription = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("rest", sqlmock.AnyArg(), "appt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateNotes(context.Background(), "appt-1", nil, &prescription))
	require.NoError(t, repo.UpdateNotes(context.Background(), "appt-1", nil, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListNewestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)
	day := testDay(t, "2024-01-03")

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE 1=1 AND patient_id = $1 AND scheduled_day = $2 ORDER BY scheduled_day DESC, start_time DESC LIMIT 10 OFFSET 10")).
		WithArgs("patient-1", day.Time).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE 1=1 AND patient_id = $1 AND scheduled_day = $2")).
		WithArgs("patient-1", day.Time).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	appts, total, err := repo.List(context.Background(), models.AppointmentFilter{PatientID: "patient-1", Day: &day, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, appts)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
