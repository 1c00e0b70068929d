package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/middleware"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/service"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

type agendaExportServiceMock struct {
	createResp  *dto.AgendaExportJobResponse
	createErr   error
	statusResp  *dto.AgendaExportStatusResponse
	statusErr   error
	download    *service.AgendaDownload
	downloadErr error
}

func (m *agendaExportServiceMock) CreateJob(ctx context.Context, req dto.AgendaExportRequest, actor *models.JWTClaims) (*dto.AgendaExportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *agendaExportServiceMock) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.AgendaExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *agendaExportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.AgendaDownload, error) {
	return m.download, m.downloadErr
}

func TestAgendaExportHandlerCreate(t *testing.T) {
	mockSvc := &agendaExportServiceMock{
		createResp: &dto.AgendaExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued},
	}
	handler := NewAgendaExportHandler(mockSvc)

	payload, _ := json.Marshal(dto.AgendaExportRequest{ActingID: "acting-1", From: "2024-01-01", To: "2024-01-31", Format: models.ExportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/agenda-exports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestAgendaExportHandlerStatus(t *testing.T) {
	mockSvc := &agendaExportServiceMock{
		statusResp: &dto.AgendaExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100},
	}
	handler := NewAgendaExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/agenda-exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	mockSvc.statusErr = appErrors.ErrForbidden
	c, w = newGinContext(http.MethodGet, "/agenda-exports/job-1", nil)
	handler.Status(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAgendaExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.csv")
	require.NoError(t, os.WriteFile(path, []byte("Day,Start\n2024-01-10,10:00\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &agendaExportServiceMock{
		download: &service.AgendaDownload{
			File:      file,
			Filename:  "agenda.csv",
			Format:    models.ExportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewAgendaExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/agenda-exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "agenda.csv")
	assert.Equal(t, "Day,Start\n2024-01-10,10:00\n", w.Body.String())

	mockSvc.downloadErr = appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	c, w = newGinContext(http.MethodGet, "/agenda-exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
