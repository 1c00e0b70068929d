package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/pkg/response"
)

type notificationDrainer interface {
	DrainPending(ctx context.Context, limit int) (map[string][]string, error)
}

// NotificationHandler exposes the pending notification feed.
type NotificationHandler struct {
	service notificationDrainer
}

// NewNotificationHandler constructs handler.
func NewNotificationHandler(svc notificationDrainer) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// Pending godoc
// @Summary Drain unsent notifications
// @Description Returns unsent messages grouped by patient and marks them sent.
// @Tags Notifications
// @Produce json
// @Param limit query int false "Maximum notifications to drain"
// @Success 200 {object} response.Envelope
// @Router /notifications/pending [get]
func (h *NotificationHandler) Pending(c *gin.Context) {
	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}
	grouped, err := h.service.DrainPending(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grouped, nil)
}
