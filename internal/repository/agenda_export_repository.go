package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medagenda/booking-api/internal/models"
)

const agendaExportColumns = "id, acting_id, params, status, progress, result_url, created_by, created_at, finished_at, error_message"

// AgendaExportRepository persists agenda export job metadata.
type AgendaExportRepository struct {
	db *sqlx.DB
}

// NewAgendaExportRepository constructs the repository.
func NewAgendaExportRepository(db *sqlx.DB) *AgendaExportRepository {
	return &AgendaExportRepository{db: db}
}

// Create inserts a new export job row with generated defaults.
func (r *AgendaExportRepository) Create(ctx context.Context, job *models.AgendaExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO agenda_export_jobs (id, acting_id, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :acting_id, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create agenda export job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *AgendaExportRepository) GetByID(ctx context.Context, id string) (*models.AgendaExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM agenda_export_jobs WHERE id = $1", agendaExportColumns)
	var job models.AgendaExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get agenda export job: %w", err)
	}
	return &job, nil
}

// UpdateAgendaExportParams defines the mutable fields.
type UpdateAgendaExportParams struct {
	Status       *models.ExportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *AgendaExportRepository) Update(ctx context.Context, id string, params UpdateAgendaExportParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE agenda_export_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update agenda export job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *AgendaExportRepository) ListQueued(ctx context.Context, limit int) ([]models.AgendaExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM agenda_export_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1", agendaExportColumns)
	var jobs []models.AgendaExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued agenda export jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs prior to cutoff for cleanup.
func (r *AgendaExportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AgendaExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM agenda_export_jobs WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2", agendaExportColumns)
	var jobs []models.AgendaExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished agenda export jobs: %w", err)
	}
	return jobs, nil
}
