package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/service"
	"github.com/medagenda/booking-api/pkg/response"
)

// IdempotencyHeader carries the client supplied booking key.
const IdempotencyHeader = "Idempotency-Key"

type appointmentService interface {
	Check(ctx context.Context, req dto.CreateAppointmentRequest) (*service.Admission, error)
	CreateIdempotent(ctx context.Context, key string, req dto.CreateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, bool, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error)
	GetFor(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error)
	List(ctx context.Context, q dto.AppointmentQuery, actor *models.JWTClaims) ([]models.Appointment, *models.Pagination, error)
	UpdateNotes(ctx context.Context, id string, req dto.UpdateAppointmentNotesRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) error
}

// AppointmentHandler exposes booking endpoints.
type AppointmentHandler struct {
	service appointmentService
}

// NewAppointmentHandler builds a new handler.
func NewAppointmentHandler(svc appointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: svc}
}

// Create godoc
// @Summary Book an appointment
// @Description Runs the conflict checker under the acting's booking lock. A replayed Idempotency-Key returns the original appointment with 200.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param payload body dto.CreateAppointmentRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid appointment payload"))
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	appt, replayed, err := h.service.CreateIdempotent(c.Request.Context(), key, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if replayed {
		response.Replayed(c, appt)
		return
	}
	response.Created(c, appt)
}

// Check godoc
// @Summary Dry-run a booking
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAppointmentRequest true "Booking payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/check [post]
func (h *AppointmentHandler) Check(c *gin.Context) {
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid appointment payload"))
		return
	}
	admission, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AdmissionResponse{
		BlockID:     admission.Block.ID,
		StartTime:   int(admission.Start),
		EndTime:     int(admission.End),
		Overlapping: admission.Overlapping,
		MaxVisits:   admission.Block.MaxVisits,
	}, nil)
}

// Reschedule godoc
// @Summary Reschedule an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.RescheduleAppointmentRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reschedule payload"))
		return
	}
	appt, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// List godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param acting_id query string false "Acting ID"
// @Param patient_id query string false "Patient ID"
// @Param day query string false "Day (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	var q dto.AppointmentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err, "invalid appointment query"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), q, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.service.GetFor(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// UpdateNotes godoc
// @Summary Update complaint and prescription
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.UpdateAppointmentNotesRequest true "Notes payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/notes [patch]
func (h *AppointmentHandler) UpdateNotes(c *gin.Context) {
	var req dto.UpdateAppointmentNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid notes payload"))
		return
	}
	appt, err := h.service.UpdateNotes(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Cancel godoc
// @Summary Cancel an appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
