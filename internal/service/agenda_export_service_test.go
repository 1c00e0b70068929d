package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/repository"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
	"github.com/medagenda/booking-api/pkg/export"
	"github.com/medagenda/booking-api/pkg/jobs"
	"github.com/medagenda/booking-api/pkg/storage"
)

type agendaExportRepoStub struct {
	jobs map[string]*models.AgendaExportJob
}

func newAgendaExportRepoStub() *agendaExportRepoStub {
	return &agendaExportRepoStub{jobs: map[string]*models.AgendaExportJob{}}
}

func (r *agendaExportRepoStub) Create(ctx context.Context, job *models.AgendaExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *agendaExportRepoStub) GetByID(ctx context.Context, id string) (*models.AgendaExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (r *agendaExportRepoStub) Update(ctx context.Context, id string, params repository.UpdateAgendaExportParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *agendaExportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.AgendaExportJob, error) {
	var queued []models.AgendaExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *agendaExportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AgendaExportJob, error) {
	var finished []models.AgendaExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

type agendaSourceStub struct {
	appts []models.Appointment
	err   error
}

func (s agendaSourceStub) ListForActingsBetween(ctx context.Context, actingIDs []string, from, to models.Date) ([]models.Appointment, error) {
	return s.appts, s.err
}

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, job *models.AgendaExportJob) (*ExportResult, error) {
	return nil, errors.New("render failed")
}

type agendaExportFixture struct {
	svc      *AgendaExportService
	worker   *AgendaExportWorker
	repo     *agendaExportRepoStub
	queue    *queueStub
	exporter *ExportService
	dir      string
}

func newAgendaExportFixture(t *testing.T) agendaExportFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	wed := day(t, "2024-01-10")
	source := agendaSourceStub{appts: []models.Appointment{
		bookedAt("a2", wed, 630, 660),
		bookedAt("a1", wed, 600, 630),
	}}
	exporter := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	repo := newAgendaExportRepoStub()
	queue := &queueStub{}
	svc := NewAgendaExportService(repo, newActingRepoStub(), queue, exporter, nil, zap.NewNop(), AgendaExportServiceConfig{ResultTTL: time.Hour})
	worker := NewAgendaExportWorker(repo, exporter, 2, zap.NewNop())
	return agendaExportFixture{svc: svc, worker: worker, repo: repo, queue: queue, exporter: exporter, dir: dir}
}

func exportRequest(format models.ExportFormat) dto.AgendaExportRequest {
	return dto.AgendaExportRequest{ActingID: "acting-1", From: "2024-01-01", To: "2024-01-31", Format: format}
}

func TestAgendaExportCreateRenderAndDownload(t *testing.T) {
	f := newAgendaExportFixture(t)
	owner := &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional}

	resp, err := f.svc.CreateJob(context.Background(), exportRequest(models.ExportFormatCSV), owner)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, JobTypeAgendaExport, f.queue.jobs[0].Type)

	require.NoError(t, f.worker.Handle(context.Background(), f.queue.jobs[0]))

	status, err := f.svc.GetStatus(context.Background(), resp.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	assert.Contains(t, *status.ResultURL, "/api/v1/agenda-exports/download/")

	token := extractToken(*status.ResultURL)
	download, err := f.svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Start,End,Patient ID,Complaint,Prescription", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-10,10:00,10:30,patient-a1"), lines[1])
	assert.Equal(t, models.ExportFormatCSV, download.Format)

	_, err = f.svc.ResolveDownload(context.Background(), token+"x")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestAgendaExportPDF(t *testing.T) {
	f := newAgendaExportFixture(t)
	job := &models.AgendaExportJob{
		ID:       "job-pdf",
		ActingID: "acting-1",
		Params:   models.AgendaExportParams{From: day(t, "2024-01-01"), To: day(t, "2024-01-31"), Format: models.ExportFormatPDF},
	}
	result, err := f.exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(f.dir, result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))
}

func TestAgendaExportCreateValidation(t *testing.T) {
	f := newAgendaExportFixture(t)

	req := exportRequest("xlsx")
	_, err := f.svc.CreateJob(context.Background(), req, nil)
	assertRejected(t, err, appErrors.ErrValidation, "format", "oneof")

	req = exportRequest(models.ExportFormatCSV)
	req.To = "2023-12-01"
	_, err = f.svc.CreateJob(context.Background(), req, nil)
	assertRejected(t, err, appErrors.ErrValidation, "to", ReasonInvalidRange)

	req = exportRequest(models.ExportFormatCSV)
	req.ActingID = "ghost"
	_, err = f.svc.CreateJob(context.Background(), req, nil)
	assertRejected(t, err, appErrors.ErrNotFound, "acting_id", ReasonNotFound)

	_, err = f.svc.CreateJob(context.Background(), exportRequest(models.ExportFormatCSV), &models.JWTClaims{UserID: "prof-9", Role: models.RoleProfessional})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.queue.jobs)
}

func TestAgendaExportEnqueueFailureMarksJobFailed(t *testing.T) {
	f := newAgendaExportFixture(t)
	f.queue.err = errors.New("queue stopped")

	_, err := f.svc.CreateJob(context.Background(), exportRequest(models.ExportFormatCSV), nil)
	require.Error(t, err)
	require.Len(t, f.repo.jobs, 1)
	for _, job := range f.repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestAgendaExportWorkerRetriesThenFails(t *testing.T) {
	f := newAgendaExportFixture(t)
	worker := NewAgendaExportWorker(f.repo, failingGenerator{}, 2, zap.NewNop())
	job := &models.AgendaExportJob{ActingID: "acting-1", Status: models.ExportStatusQueued}
	require.NoError(t, f.repo.Create(context.Background(), job))

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 0}))
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2}))
	assert.Equal(t, models.ExportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)
}

func TestAgendaExportRecoverAndCleanup(t *testing.T) {
	f := newAgendaExportFixture(t)
	queued := &models.AgendaExportJob{ActingID: "acting-1", Status: models.ExportStatusQueued}
	require.NoError(t, f.repo.Create(context.Background(), queued))

	f.svc.RecoverPendingJobs(context.Background())
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, queued.ID, f.queue.jobs[0].ID)

	job := &models.AgendaExportJob{
		ID:       "old",
		ActingID: "acting-1",
		Params:   models.AgendaExportParams{From: day(t, "2024-01-01"), To: day(t, "2024-01-31"), Format: models.ExportFormatCSV},
	}
	result, err := f.exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	finishedAt := time.Now().Add(-2 * time.Hour)
	job.Status = models.ExportStatusFinished
	job.FinishedAt = &finishedAt
	job.ResultURL = &result.URL
	f.repo.jobs[job.ID] = job

	f.svc.cleanupExpired(context.Background())
	_, err = os.Stat(filepath.Join(f.dir, result.RelativePath))
	assert.True(t, os.IsNotExist(err), fmt.Sprintf("expected export to be removed, got %v", err))
}

func TestAgendaExportStatusScopedToCreator(t *testing.T) {
	f := newAgendaExportFixture(t)
	resp, err := f.svc.CreateJob(context.Background(), exportRequest(models.ExportFormatCSV), &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})
	require.NoError(t, err)

	_, err = f.svc.GetStatus(context.Background(), resp.ID, &models.JWTClaims{UserID: "prof-2", Role: models.RoleProfessional})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.GetStatus(context.Background(), resp.ID, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
}
