package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/repository"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
	"github.com/medagenda/booking-api/pkg/jobs"
)

// JobTypeAgendaExport routes agenda export jobs on the background queue.
const JobTypeAgendaExport = "agenda_export"

type agendaExportStore interface {
	Create(ctx context.Context, job *models.AgendaExportJob) error
	GetByID(ctx context.Context, id string) (*models.AgendaExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateAgendaExportParams) error
	ListQueued(ctx context.Context, limit int) ([]models.AgendaExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AgendaExportJob, error)
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.AgendaExportJob) (*ExportResult, error)
}

// AgendaExportServiceConfig governs queue recovery and cleanup.
type AgendaExportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	// MaxRangeDays bounds the agenda window of a single export.
	MaxRangeDays int
}

// AgendaDownload aggregates resolved download data.
type AgendaDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// AgendaExportService orchestrates the agenda export job lifecycle.
type AgendaExportService struct {
	repo      agendaExportStore
	actings   actingFinder
	queue     jobDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AgendaExportServiceConfig
}

// NewAgendaExportService constructs the service.
func NewAgendaExportService(repo agendaExportStore, actings actingFinder, queue jobDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg AgendaExportServiceConfig) *AgendaExportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 366
	}
	return &AgendaExportService{
		repo:      repo,
		actings:   actings,
		queue:     queue,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates the request, persists the job and enqueues rendering.
func (s *AgendaExportService) CreateJob(ctx context.Context, req dto.AgendaExportRequest, actor *models.JWTClaims) (*dto.AgendaExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid agenda export payload")
	}
	from, err := parseDayField(req.From, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseDayField(req.To, "to")
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, appErrors.Field("to", ReasonInvalidRange, "to must not be before from")
	}
	if to.After(from.AddDays(s.cfg.MaxRangeDays)) {
		return nil, appErrors.Field("to", ReasonInvalidRange, "export range is too long")
	}
	acting, err := s.actings.FindByID(ctx, req.ActingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundField("acting_id", "acting not found")
		}
		return nil, internalError(err, "failed to load acting")
	}
	if actor != nil && actor.Role == models.RoleProfessional && acting.ProfessionalID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "professionals may only export their own agenda")
	}

	createdBy := ""
	if actor != nil {
		createdBy = actor.UserID
	}
	job := &models.AgendaExportJob{
		ActingID:  acting.ID,
		Params:    models.AgendaExportParams{From: from, To: to, Format: req.Format},
		Status:    models.ExportStatusQueued,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, internalError(err, "failed to create agenda export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeAgendaExport}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateAgendaExportParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, internalError(err, "failed to enqueue agenda export job")
	}
	return &dto.AgendaExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata, scoping professionals to the jobs they created.
func (s *AgendaExportService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.AgendaExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, internalError(err, "failed to load agenda export job")
	}
	if actor != nil && actor.Role == models.RoleProfessional && job.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.AgendaExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *AgendaExportService) ResolveDownload(ctx context.Context, token string) (*AgendaDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, internalError(err, "failed to load agenda export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, internalError(err, "failed to open export file")
	}
	return &AgendaDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a restart.
func (s *AgendaExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued agenda exports", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeAgendaExport}); err != nil {
			s.logger.Warn("failed to requeue agenda export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *AgendaExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *AgendaExportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	const batch = 100
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
		if err != nil {
			s.logger.Warn("agenda export cleanup list failed", zap.Error(err))
			return
		}
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Warn("agenda export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		if len(expired) < batch {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// AgendaExportWorker bridges queue jobs to ExportService.
type AgendaExportWorker struct {
	repo       agendaExportStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewAgendaExportWorker constructs a worker.
func NewAgendaExportWorker(repo agendaExportStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *AgendaExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &AgendaExportWorker{repo: repo, exporter: exporter, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job.
func (w *AgendaExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateAgendaExportParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateAgendaExportParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark agenda export failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		} else {
			queued := models.ExportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateAgendaExportParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark agenda export queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}
	finished := models.ExportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateAgendaExportParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark agenda export finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}
