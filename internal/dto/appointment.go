package dto

// CreateAppointmentRequest captures POST /appointments payload.
// Days are ISO dates and times are minutes since midnight.
type CreateAppointmentRequest struct {
	PatientID    string `json:"patient_id" validate:"required"`
	ActingID     string `json:"acting_id" validate:"required"`
	ScheduledDay string `json:"scheduled_day" validate:"required"`
	StartTime    *int   `json:"start_time" validate:"required"`
	EndTime      *int   `json:"end_time,omitempty"`
	Complaint    string `json:"complaint,omitempty" validate:"max=4000"`
	Prescription string `json:"prescription,omitempty" validate:"max=4000"`
}

// RescheduleAppointmentRequest captures PUT /appointments/:id payload.
type RescheduleAppointmentRequest struct {
	PatientID    string  `json:"patient_id,omitempty"`
	ActingID     string  `json:"acting_id" validate:"required"`
	ScheduledDay string  `json:"scheduled_day" validate:"required"`
	StartTime    *int    `json:"start_time" validate:"required"`
	EndTime      *int    `json:"end_time,omitempty"`
	Complaint    *string `json:"complaint,omitempty" validate:"omitempty,max=4000"`
	Prescription *string `json:"prescription,omitempty" validate:"omitempty,max=4000"`
}

// UpdateAppointmentNotesRequest captures PATCH /appointments/:id/notes payload.
type UpdateAppointmentNotesRequest struct {
	Complaint    *string `json:"complaint,omitempty" validate:"omitempty,max=4000"`
	Prescription *string `json:"prescription,omitempty" validate:"omitempty,max=4000"`
}

// AppointmentQuery filters GET /appointments.
type AppointmentQuery struct {
	ActingID  string `form:"acting_id"`
	PatientID string `form:"patient_id"`
	Day       string `form:"day"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,min=1,max=200"`
}

// AdmissionResponse reports a dry-run booking check.
type AdmissionResponse struct {
	BlockID     string `json:"block_id"`
	StartTime   int    `json:"start_time"`
	EndTime     int    `json:"end_time"`
	Overlapping int    `json:"overlapping"`
	MaxVisits   int    `json:"max_visits"`
}
