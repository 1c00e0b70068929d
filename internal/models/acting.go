package models

import "time"

// Acting is a professional practicing a specialty at a clinic.
// The (professional, clinic, specialty) triple is not unique.
type Acting struct {
	ID             string    `db:"id" json:"id"`
	ProfessionalID string    `db:"professional_id" json:"professional_id"`
	ClinicID       string    `db:"clinic_id" json:"clinic_id"`
	SpecialtyID    string    `db:"specialty_id" json:"specialty_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ActingFilter narrows acting listings.
type ActingFilter struct {
	ProfessionalID string
	ClinicID       string
	SpecialtyID    string
	Page           int
	PageSize       int
}

// SpecialtySummary describes a specialty offered at a clinic.
type SpecialtySummary struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
