package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/service"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
	"github.com/medagenda/booking-api/pkg/response"
)

type agendaExportService interface {
	CreateJob(ctx context.Context, req dto.AgendaExportRequest, actor *models.JWTClaims) (*dto.AgendaExportJobResponse, error)
	GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.AgendaExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.AgendaDownload, error)
}

// AgendaExportHandler exposes agenda export endpoints.
type AgendaExportHandler struct {
	service agendaExportService
}

// NewAgendaExportHandler constructs handler.
func NewAgendaExportHandler(svc agendaExportService) *AgendaExportHandler {
	return &AgendaExportHandler{service: svc}
}

// Create godoc
// @Summary Queue an agenda export
// @Tags Agenda Exports
// @Accept json
// @Produce json
// @Param payload body dto.AgendaExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /agenda-exports [post]
func (h *AgendaExportHandler) Create(c *gin.Context) {
	var req dto.AgendaExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid export payload"))
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Agenda export status
// @Tags Agenda Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /agenda-exports/{id} [get]
func (h *AgendaExportHandler) Status(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download an agenda export via signed token
// @Tags Agenda Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /agenda-exports/download/{token} [get]
func (h *AgendaExportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read export"))
		return
	}
	contentType := "text/csv"
	if result.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, result.File, nil)
}
