package models

import "time"

// Appointment is a concrete booked visit against an Acting.
type Appointment struct {
	ID           string       `db:"id" json:"id"`
	Complaint    string       `db:"complaint" json:"complaint"`
	Prescription string       `db:"prescription" json:"prescription"`
	ScheduledDay Date         `db:"scheduled_day" json:"scheduled_day"`
	StartTime    MinuteOfDay  `db:"start_time" json:"start_time"`
	EndTime      *MinuteOfDay `db:"end_time" json:"end_time,omitempty"`
	PatientID    string       `db:"patient_id" json:"patient_id"`
	ActingID     string       `db:"acting_id" json:"acting_id"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	ActingID  string
	PatientID string
	Day       *Date
	Page      int
	PageSize  int
}

// End returns the end of the visit. Rows without an end occupy fallback minutes.
func (a Appointment) End(fallback int) MinuteOfDay {
	if a.EndTime != nil {
		return *a.EndTime
	}
	return a.StartTime + MinuteOfDay(fallback)
}

// Overlaps reports whether the visit intersects [start, end).
func (a Appointment) Overlaps(start, end MinuteOfDay, fallback int) bool {
	return Overlaps(a.StartTime, a.End(fallback), start, end)
}
