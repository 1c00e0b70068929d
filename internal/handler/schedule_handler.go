package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
	"github.com/medagenda/booking-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleBlockFilter) ([]models.ScheduleBlock, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ScheduleBlock, error)
	Create(ctx context.Context, req dto.CreateScheduleBlockRequest, actor *models.JWTClaims) (*models.ScheduleBlock, error)
	Update(ctx context.Context, id string, req dto.UpdateScheduleBlockRequest, actor *models.JWTClaims) (*models.ScheduleBlock, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// ScheduleHandler manages schedule block endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedule blocks
// @Tags Schedules
// @Produce json
// @Param acting_id query string false "Filter by acting"
// @Param week_day query int false "Filter by weekday (0=Monday)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleBlockFilter
	filter.ActingID = c.Query("acting_id")
	if raw := c.Query("week_day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Field("week_day", "invalid_range", "week_day must be an integer between 0 and 6"))
			return
		}
		filter.WeekDay = &day
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	blocks, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, pagination)
}

// Get godoc
// @Summary Get a schedule block
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule block ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	block, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, block, nil)
}

// Create godoc
// @Summary Create a schedule block
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.CreateScheduleBlockRequest true "Schedule block payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	block, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// Update godoc
// @Summary Update a schedule block
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule block ID"
// @Param payload body dto.UpdateScheduleBlockRequest true "Schedule block payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateScheduleBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	block, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, block, nil)
}

// Delete godoc
// @Summary Delete a schedule block
// @Tags Schedules
// @Param id path string true "Schedule block ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
