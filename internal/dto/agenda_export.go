package dto

import "github.com/medagenda/booking-api/internal/models"

// AgendaExportRequest captures POST /agenda-exports payload.
type AgendaExportRequest struct {
	ActingID string              `json:"acting_id" validate:"required"`
	From     string              `json:"from" validate:"required"`
	To       string              `json:"to" validate:"required"`
	Format   models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// AgendaExportJobResponse is returned after enqueueing an export.
type AgendaExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// AgendaExportStatusResponse exposes job progress metadata.
type AgendaExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
