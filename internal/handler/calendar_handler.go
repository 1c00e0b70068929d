package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
	"github.com/medagenda/booking-api/pkg/response"
)

type availabilityService interface {
	FreeDays(ctx context.Context, q dto.FreeDaysQuery) ([]models.Date, error)
	FreeSlots(ctx context.Context, q dto.FreeSlotsQuery) ([]models.MinuteOfDay, error)
	AvailableSpecialties(ctx context.Context, clinicID string) ([]models.SpecialtySummary, error)
}

// CalendarHandler answers availability queries.
type CalendarHandler struct {
	service availabilityService
}

// NewCalendarHandler builds a new handler.
func NewCalendarHandler(svc availabilityService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// FreeDays godoc
// @Summary Days with free slots for a clinic specialty
// @Tags Calendar
// @Produce json
// @Param clinic_id query string true "Clinic ID"
// @Param specialty_id query string true "Specialty ID"
// @Param start_date query string false "First day to scan (YYYY-MM-DD), defaults to today"
// @Param num_days query int false "Number of days to return; defaults to AVAILABILITY_DEFAULT_NUM_DAYS (7), capped at AVAILABILITY_MAX_NUM_DAYS (60)"
// @Param first_day_startime query string false "Cutoff for the start date (HH:MM or minutes)"
// @Success 200 {object} response.Envelope
// @Router /calendar/free-days [get]
func (h *CalendarHandler) FreeDays(c *gin.Context) {
	var q dto.FreeDaysQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err, "invalid free days query"))
		return
	}
	days, err := h.service.FreeDays(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// FreeSlots godoc
// @Summary Free slot starts for a day
// @Description Slots are minutes since midnight. Pass acting_id, or clinic_id with specialty_id for the union across actings.
// @Tags Calendar
// @Produce json
// @Param acting_id query string false "Acting ID"
// @Param clinic_id query string false "Clinic ID"
// @Param specialty_id query string false "Specialty ID"
// @Param day query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/free-slots [get]
func (h *CalendarHandler) FreeSlots(c *gin.Context) {
	var q dto.FreeSlotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err, "invalid free slots query"))
		return
	}
	slots, err := h.service.FreeSlots(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Specialties godoc
// @Summary Specialties with open schedule blocks at a clinic
// @Tags Calendar
// @Produce json
// @Param clinic_id query string true "Clinic ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/specialties [get]
func (h *CalendarHandler) Specialties(c *gin.Context) {
	clinicID := c.Query("clinic_id")
	if clinicID == "" {
		response.Error(c, appErrors.Field("clinic_id", "required", "clinic_id is required"))
		return
	}
	items, err := h.service.AvailableSpecialties(c.Request.Context(), clinicID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
