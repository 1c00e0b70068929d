package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/pkg/export"
	"github.com/medagenda/booking-api/pkg/storage"
)

type agendaSource interface {
	ListForActingsBetween(ctx context.Context, actingIDs []string, from, to models.Date) ([]models.Appointment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders an acting's agenda and persists the file behind a signed token.
type ExportService struct {
	agenda  agendaSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(agenda agendaSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		agenda:  agenda,
		storage: files,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

var agendaHeaders = []string{"Day", "Start", "End", "Patient ID", "Complaint", "Prescription"}

// Generate renders the job's agenda and stores the result.
func (s *ExportService) Generate(ctx context.Context, job *models.AgendaExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	appointments, err := s.agenda.ListForActingsBetween(ctx, []string{job.ActingID}, job.Params.From, job.Params.To)
	if err != nil {
		return nil, fmt.Errorf("load agenda: %w", err)
	}
	dataset := agendaDataset(appointments)
	title := fmt.Sprintf("Agenda %s to %s", job.Params.From, job.Params.To)

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("agenda export rendered",
		zap.String("job_id", job.ID),
		zap.Int("appointments", len(appointments)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/agenda-exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.AgendaExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("agenda_%s_%s_%s.%s", sanitizeFilename(job.ActingID), job.Params.From, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func agendaDataset(appointments []models.Appointment) export.Dataset {
	sorted := make([]models.Appointment, len(appointments))
	copy(sorted, appointments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ScheduledDay.Equal(sorted[j].ScheduledDay) {
			return sorted[i].ScheduledDay.Before(sorted[j].ScheduledDay)
		}
		return sorted[i].StartTime < sorted[j].StartTime
	})
	rows := make([]map[string]string, 0, len(sorted))
	for _, appt := range sorted {
		end := ""
		if appt.EndTime != nil {
			end = appt.EndTime.String()
		}
		rows = append(rows, map[string]string{
			"Day":          appt.ScheduledDay.String(),
			"Start":        appt.StartTime.String(),
			"End":          end,
			"Patient ID":   appt.PatientID,
			"Complaint":    appt.Complaint,
			"Prescription": appt.Prescription,
		})
	}
	return export.Dataset{Headers: agendaHeaders, Rows: rows}
}
