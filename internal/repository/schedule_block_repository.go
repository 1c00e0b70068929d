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

const scheduleBlockColumns = "id, acting_id, start_date, end_date, start_time, end_time, max_visits, week_day, slot_interval, created_at, updated_at"

// ScheduleBlockRepository manages persistence for recurring schedule blocks.
type ScheduleBlockRepository struct {
	db *sqlx.DB
}

// NewScheduleBlockRepository constructs a ScheduleBlockRepository.
func NewScheduleBlockRepository(db *sqlx.DB) *ScheduleBlockRepository {
	return &ScheduleBlockRepository{db: db}
}

// Create inserts a schedule block.
func (r *ScheduleBlockRepository) Create(ctx context.Context, block *models.ScheduleBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if block.CreatedAt.IsZero() {
		block.CreatedAt = now
	}
	block.UpdatedAt = block.CreatedAt
	const query = `INSERT INTO schedule_blocks (id, acting_id, start_date, end_date, start_time, end_time, max_visits, week_day, slot_interval, created_at, updated_at)
VALUES (:id, :acting_id, :start_date, :end_date, :start_time, :end_time, :max_visits, :week_day, :slot_interval, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create schedule block: %w", err)
	}
	return nil
}

// Update replaces the mutable columns of a schedule block.
func (r *ScheduleBlockRepository) Update(ctx context.Context, block *models.ScheduleBlock) error {
	block.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_blocks SET start_date = :start_date, end_date = :end_date, start_time = :start_time, end_time = :end_time,
max_visits = :max_visits, week_day = :week_day, slot_interval = :slot_interval, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("update schedule block: %w", err)
	}
	return nil
}

// FindByID fetches a schedule block by ID.
func (r *ScheduleBlockRepository) FindByID(ctx context.Context, id string) (*models.ScheduleBlock, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_blocks WHERE id = $1", scheduleBlockColumns)
	var block models.ScheduleBlock
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// List returns schedule blocks matching filters along with total count.
func (r *ScheduleBlockRepository) List(ctx context.Context, filter models.ScheduleBlockFilter) ([]models.ScheduleBlock, int, error) {
	base := "FROM schedule_blocks WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ActingID != "" {
		conditions = append(conditions, fmt.Sprintf("acting_id = $%d", len(args)+1))
		args = append(args, filter.ActingID)
	}
	if filter.WeekDay != nil {
		conditions = append(conditions, fmt.Sprintf("week_day = $%d", len(args)+1))
		args = append(args, *filter.WeekDay)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY week_day, start_time LIMIT %d OFFSET %d", scheduleBlockColumns, base, size, (page-1)*size)
	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule blocks: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule blocks: %w", err)
	}
	return blocks, total, nil
}

// ListActiveOn returns the blocks of an acting governing day, ordered by start time.
func (r *ScheduleBlockRepository) ListActiveOn(ctx context.Context, actingID string, day models.Date) ([]models.ScheduleBlock, error) {
	return selectActiveBlocks(ctx, r.db, actingID, day)
}

// ListOpenByClinicSpecialty returns every block with capacity belonging to an acting of
// the specialty at the clinic.
func (r *ScheduleBlockRepository) ListOpenByClinicSpecialty(ctx context.Context, clinicID, specialtyID string) ([]models.ScheduleBlock, error) {
	const query = `SELECT sb.id, sb.acting_id, sb.start_date, sb.end_date, sb.start_time, sb.end_time, sb.max_visits, sb.week_day, sb.slot_interval, sb.created_at, sb.updated_at
FROM schedule_blocks sb
JOIN actings a ON a.id = sb.acting_id
WHERE a.clinic_id = $1 AND a.specialty_id = $2 AND sb.max_visits > 0
ORDER BY sb.week_day, sb.start_time`
	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, query, clinicID, specialtyID); err != nil {
		return nil, fmt.Errorf("list open schedule blocks: %w", err)
	}
	return blocks, nil
}

// Delete removes a schedule block. It reports whether a row existed.
func (r *ScheduleBlockRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete schedule block rows affected: %w", err)
	}
	return affected > 0, nil
}

func selectActiveBlocks(ctx context.Context, q sqlx.QueryerContext, actingID string, day models.Date) ([]models.ScheduleBlock, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_blocks
WHERE acting_id = $1 AND week_day = $2 AND start_date <= $3 AND (end_date IS NULL OR end_date >= $3)
ORDER BY start_time`, scheduleBlockColumns)
	var blocks []models.ScheduleBlock
	if err := sqlx.SelectContext(ctx, q, &blocks, query, actingID, day.WeekDay(), day); err != nil {
		return nil, fmt.Errorf("list active schedule blocks: %w", err)
	}
	return blocks, nil
}
