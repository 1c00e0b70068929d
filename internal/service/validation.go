package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

// Machine readable rejection reasons carried in error fields.
const (
	ReasonRequired     = "required"
	ReasonInvalidDate  = "invalid_date"
	ReasonInvalidTime  = "invalid_time"
	ReasonInvalidRange = "invalid_range"
	ReasonNotFound     = "not_found"
	ReasonNoSchedule   = "no_schedule"
	ReasonOutOfHours   = "out_of_hours"
	ReasonOffGrid      = "off_grid"
	ReasonSlotFull     = "slot_full"
)

// NewValidator returns a validator reporting fields by their JSON or form name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return v
}

// validationError converts validator output into a VALIDATION_ERROR carrying one reason per field.
func validationError(err error, message string) error {
	appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		appErr.Fields = make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			appErr.Fields[fe.Field()] = fe.Tag()
		}
	}
	return appErr
}

func parseDayField(raw, field string) (models.Date, error) {
	day, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, appErrors.Field(field, ReasonInvalidDate, fmt.Sprintf("%s must be an ISO date (YYYY-MM-DD)", field))
	}
	return day, nil
}

func parseOptionalDayField(raw *string, field string) (*models.Date, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	day, err := parseDayField(*raw, field)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func notFoundField(field, message string) error {
	return appErrors.WithField(appErrors.Clone(appErrors.ErrNotFound, message), field, ReasonNotFound)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
