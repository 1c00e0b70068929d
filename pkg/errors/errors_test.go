package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	clone := Clone(ErrSlotFull, "slot 10:00 is full")
	require.True(t, errors.Is(clone, ErrSlotFull))
	assert.False(t, errors.Is(clone, ErrOutOfHours))
	assert.Equal(t, "slot 10:00 is full", clone.Message)
	assert.Equal(t, "the requested slot is full", ErrSlotFull.Message)
}

func TestWithFieldDoesNotMutateSentinel(t *testing.T) {
	err := WithField(ErrOutOfHours, "start_time", "before_opening")
	assert.Equal(t, map[string]string{"start_time": "before_opening"}, err.Fields)
	assert.Nil(t, ErrOutOfHours.Fields)

	again := WithField(err, "end_time", "after_closing")
	assert.Len(t, again.Fields, 2)
	assert.Len(t, err.Fields, 1)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("dial tcp: refused"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("booking: %w", Field("scheduled_day", "invalid_date", "invalid day"))
	assert.True(t, HasCode(wrapped, ErrValidation.Code))
	assert.Equal(t, "invalid_date", FromError(wrapped).Fields["scheduled_day"])
}
