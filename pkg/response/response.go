package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
	"github.com/medagenda/booking-api/pkg/middleware/requestid"
)

// ReplayHeader marks a response served from a stored Idempotency-Key result.
const ReplayHeader = "Idempotent-Replayed"

// conflictRetryAfter is the Retry-After hint, in seconds, sent when a booking lost a lock race.
const conflictRetryAfter = "1"

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Replayed answers a repeated booking with the originally created resource and 200.
func Replayed(c *gin.Context, data interface{}) {
	c.Header(ReplayHeader, "true")
	JSON(c, http.StatusOK, data, nil, map[string]interface{}{"idempotent_replay": true})
}

// Error sends an error response converting the error to the common structure.
// Internal errors never leak the wrapped cause to the client. Rejections keep their
// field reasons, and the request id is echoed in meta so a rejected booking can be traced.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError && err != nil {
		_ = c.Error(err)
	}
	noStore(c)
	if appErrors.HasCode(err, appErrors.ErrBookingConflict.Code) {
		c.Header("Retry-After", conflictRetryAfter)
	}

	envelope := Envelope{Error: appErr}
	if id := requestid.Value(c); id != "" {
		envelope.Meta = map[string]interface{}{"request_id": id}
	}
	c.JSON(appErr.Status, envelope)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
