package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/models"
)

var agendaExportRowColumns = []string{"id", "acting_id", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestAgendaExportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAgendaExportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO agenda_export_jobs")).
		WithArgs(sqlmock.AnyArg(), "acting-1", sqlmock.AnyArg(), "QUEUED", 0, nil, "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.AgendaExportJob{
		ActingID: "acting-1",
		Params: models.AgendaExportParams{
			From:   testDay(t, "2024-01-01"),
			To:     testDay(t, "2024-01-31"),
			Format: models.ExportFormatCSV,
		},
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	rows := sqlmock.NewRows(agendaExportRowColumns).
		AddRow(job.ID, "acting-1", `{"from":"2024-01-01","to":"2024-01-31","format":"csv"}`, "QUEUED", 0, nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM agenda_export_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.Equal(t, "2024-01-31", fetched.Params.To.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgendaExportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAgendaExportRepository(db)

	now := time.Now()
	status := models.ExportStatusFinished
	progress := 100
	result := "/api/v1/agenda-exports/download/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agenda_export_jobs SET status = $1, progress = $2, result_url = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, progress, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateAgendaExportParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgendaExportRepositoryListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAgendaExportRepository(db)

	cutoff := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2")).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows(agendaExportRowColumns).
			AddRow("job-1", "acting-1", `{"format":"pdf"}`, "FINISHED", 100, "/x", "user-1", time.Now(), time.Now(), nil))

	jobs, err := repo.ListFinishedBefore(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.ExportFormatPDF, jobs[0].Params.Format)
	require.NoError(t, mock.ExpectationsWereMet())
}
