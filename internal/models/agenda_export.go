package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// AgendaExportJob is the persisted state of an agenda export request.
type AgendaExportJob struct {
	ID           string             `db:"id" json:"id"`
	ActingID     string             `db:"acting_id" json:"acting_id"`
	Params       AgendaExportParams `db:"params" json:"params"`
	Status       ExportStatus       `db:"status" json:"status"`
	Progress     int                `db:"progress" json:"progress"`
	ResultURL    *string            `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string             `db:"created_by" json:"created_by"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time         `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
}

// AgendaExportParams stores the requested range and format as JSONB.
type AgendaExportParams struct {
	From   Date         `json:"from"`
	To     Date         `json:"to"`
	Format ExportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p AgendaExportParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal agenda export params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *AgendaExportParams) Scan(value interface{}) error {
	if value == nil {
		*p = AgendaExportParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AgendaExportParams", value)
	}
	if len(data) == 0 {
		*p = AgendaExportParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal agenda export params: %w", err)
	}
	return nil
}
