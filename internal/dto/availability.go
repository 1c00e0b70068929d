package dto

// FreeDaysQuery filters GET /calendar/free-days.
type FreeDaysQuery struct {
	ClinicID    string `form:"clinic_id" validate:"required"`
	SpecialtyID string `form:"specialty_id" validate:"required"`
	StartDate   string `form:"start_date"`
	NumDays     int    `form:"num_days" validate:"omitempty,min=0"`
	// FirstDayStartTime is an HH:MM or minute cutoff applied to the start date only.
	FirstDayStartTime string `form:"first_day_startime"`
}

// FreeSlotsQuery filters GET /calendar/free-slots.
// Either ActingID or the ClinicID and SpecialtyID pair must be set.
type FreeSlotsQuery struct {
	ActingID    string `form:"acting_id"`
	ClinicID    string `form:"clinic_id"`
	SpecialtyID string `form:"specialty_id"`
	Day         string `form:"day" validate:"required"`
}
