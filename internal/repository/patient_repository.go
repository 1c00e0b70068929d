package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PatientRepository answers lookups against the patients table owned by the registry service.
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository constructs a PatientRepository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// Exists reports whether a patient row exists.
func (r *PatientRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}
