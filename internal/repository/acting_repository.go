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

const actingColumns = "id, professional_id, clinic_id, specialty_id, created_at"

// ActingRepository manages persistence for actings.
type ActingRepository struct {
	db *sqlx.DB
}

// NewActingRepository constructs an ActingRepository.
func NewActingRepository(db *sqlx.DB) *ActingRepository {
	return &ActingRepository{db: db}
}

// Create inserts an acting. Duplicate triples are accepted.
func (r *ActingRepository) Create(ctx context.Context, acting *models.Acting) error {
	if acting.ID == "" {
		acting.ID = uuid.NewString()
	}
	if acting.CreatedAt.IsZero() {
		acting.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO actings (id, professional_id, clinic_id, specialty_id, created_at)
VALUES (:id, :professional_id, :clinic_id, :specialty_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, acting); err != nil {
		return fmt.Errorf("create acting: %w", err)
	}
	return nil
}

// FindByID fetches an acting by ID.
func (r *ActingRepository) FindByID(ctx context.Context, id string) (*models.Acting, error) {
	query := fmt.Sprintf("SELECT %s FROM actings WHERE id = $1", actingColumns)
	var acting models.Acting
	if err := r.db.GetContext(ctx, &acting, query, id); err != nil {
		return nil, err
	}
	return &acting, nil
}

// List returns actings matching filters along with total count.
func (r *ActingRepository) List(ctx context.Context, filter models.ActingFilter) ([]models.Acting, int, error) {
	base := "FROM actings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ProfessionalID != "" {
		conditions = append(conditions, fmt.Sprintf("professional_id = $%d", len(args)+1))
		args = append(args, filter.ProfessionalID)
	}
	if filter.ClinicID != "" {
		conditions = append(conditions, fmt.Sprintf("clinic_id = $%d", len(args)+1))
		args = append(args, filter.ClinicID)
	}
	if filter.SpecialtyID != "" {
		conditions = append(conditions, fmt.Sprintf("specialty_id = $%d", len(args)+1))
		args = append(args, filter.SpecialtyID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", actingColumns, base, size, (page-1)*size)
	var actings []models.Acting
	if err := r.db.SelectContext(ctx, &actings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list actings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count actings: %w", err)
	}
	return actings, total, nil
}

// ListSpecialties returns the specialties with at least one open schedule block at the clinic.
func (r *ActingRepository) ListSpecialties(ctx context.Context, clinicID string) ([]models.SpecialtySummary, error) {
	const query = `SELECT DISTINCT sp.id, sp.name
FROM specialties sp
JOIN actings a ON a.specialty_id = sp.id
JOIN schedule_blocks sb ON sb.acting_id = a.id
WHERE a.clinic_id = $1 AND sb.max_visits > 0
ORDER BY sp.id`
	var specialties []models.SpecialtySummary
	if err := r.db.SelectContext(ctx, &specialties, query, clinicID); err != nil {
		return nil, fmt.Errorf("list clinic specialties: %w", err)
	}
	return specialties, nil
}

// Delete removes an acting. It reports whether a row existed.
func (r *ActingRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM actings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete acting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete acting rows affected: %w", err)
	}
	return affected > 0, nil
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}
