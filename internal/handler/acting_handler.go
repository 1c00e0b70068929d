package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/pkg/response"
)

type actingService interface {
	Create(ctx context.Context, req dto.CreateActingRequest) (*models.Acting, error)
	Get(ctx context.Context, id string) (*models.Acting, error)
	List(ctx context.Context, filter models.ActingFilter) ([]models.Acting, *models.Pagination, error)
	Delete(ctx context.Context, id string) error
}

// ActingHandler manages actings.
type ActingHandler struct {
	service actingService
}

// NewActingHandler constructs handler.
func NewActingHandler(svc actingService) *ActingHandler {
	return &ActingHandler{service: svc}
}

// List godoc
// @Summary List actings
// @Tags Actings
// @Produce json
// @Param professional_id query string false "Filter by professional"
// @Param clinic_id query string false "Filter by clinic"
// @Param specialty_id query string false "Filter by specialty"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /actings [get]
func (h *ActingHandler) List(c *gin.Context) {
	filter := models.ActingFilter{
		ProfessionalID: c.Query("professional_id"),
		ClinicID:       c.Query("clinic_id"),
		SpecialtyID:    c.Query("specialty_id"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an acting
// @Tags Actings
// @Produce json
// @Param id path string true "Acting ID"
// @Success 200 {object} response.Envelope
// @Router /actings/{id} [get]
func (h *ActingHandler) Get(c *gin.Context) {
	acting, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, acting, nil)
}

// Create godoc
// @Summary Create an acting
// @Description Identical professional, clinic and specialty triples are accepted as separate actings.
// @Tags Actings
// @Accept json
// @Produce json
// @Param payload body dto.CreateActingRequest true "Acting payload"
// @Success 201 {object} response.Envelope
// @Router /actings [post]
func (h *ActingHandler) Create(c *gin.Context) {
	var req dto.CreateActingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid acting payload"))
		return
	}
	acting, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, acting)
}

// Delete godoc
// @Summary Delete an acting
// @Tags Actings
// @Param id path string true "Acting ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /actings/{id} [delete]
func (h *ActingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
