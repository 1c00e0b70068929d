package dto

// CreateScheduleBlockRequest captures POST /schedules payload.
type CreateScheduleBlockRequest struct {
	ActingID     string  `json:"acting_id" validate:"required"`
	StartDate    string  `json:"start_date" validate:"required"`
	EndDate      *string `json:"end_date,omitempty"`
	StartTime    *int    `json:"start_time" validate:"required,min=0,max=1439"`
	EndTime      *int    `json:"end_time" validate:"required,min=1,max=1440"`
	MaxVisits    *int    `json:"max_visits,omitempty" validate:"omitempty,min=0"`
	WeekDay      *int    `json:"week_day" validate:"required,min=0,max=6"`
	SlotInterval *int    `json:"slot_interval,omitempty" validate:"omitempty,min=5,max=720"`
}

// UpdateScheduleBlockRequest captures PUT /schedules/:id payload.
// The owning acting cannot change.
type UpdateScheduleBlockRequest struct {
	StartDate    string  `json:"start_date" validate:"required"`
	EndDate      *string `json:"end_date,omitempty"`
	StartTime    *int    `json:"start_time" validate:"required,min=0,max=1439"`
	EndTime      *int    `json:"end_time" validate:"required,min=1,max=1440"`
	MaxVisits    *int    `json:"max_visits,omitempty" validate:"omitempty,min=0"`
	WeekDay      *int    `json:"week_day" validate:"required,min=0,max=6"`
	SlotInterval *int    `json:"slot_interval,omitempty" validate:"omitempty,min=5,max=720"`
}

// CreateActingRequest captures POST /actings payload.
type CreateActingRequest struct {
	ProfessionalID string `json:"professional_id" validate:"required"`
	ClinicID       string `json:"clinic_id" validate:"required"`
	SpecialtyID    string `json:"specialty_id" validate:"required"`
}
