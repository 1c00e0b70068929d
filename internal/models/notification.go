package models

import "time"

// NotificationKind identifies the booking event a notification describes.
type NotificationKind string

const (
	NotificationBooked      NotificationKind = "BOOKED"
	NotificationRescheduled NotificationKind = "RESCHEDULED"
	NotificationCancelled   NotificationKind = "CANCELLED"
)

// Notification is a message waiting to be delivered to a patient.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	PatientID     string           `db:"patient_id" json:"patient_id"`
	AppointmentID *string          `db:"appointment_id" json:"appointment_id,omitempty"`
	Kind          NotificationKind `db:"kind" json:"kind"`
	Message       string           `db:"message" json:"message"`
	Sent          bool             `db:"sent" json:"sent"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	SentAt        *time.Time       `db:"sent_at" json:"sent_at,omitempty"`
}
