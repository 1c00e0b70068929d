package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medagenda/booking-api/internal/middleware"
	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
