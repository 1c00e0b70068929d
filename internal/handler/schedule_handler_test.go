package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/service"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

type scheduleServiceMock struct {
	block      *models.ScheduleBlock
	err        error
	lastFilter models.ScheduleBlockFilter
}

func (m *scheduleServiceMock) List(ctx context.Context, filter models.ScheduleBlockFilter) ([]models.ScheduleBlock, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.ScheduleBlock{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, m.err
}

func (m *scheduleServiceMock) Get(ctx context.Context, id string) (*models.ScheduleBlock, error) {
	return m.block, m.err
}

func (m *scheduleServiceMock) Create(ctx context.Context, req dto.CreateScheduleBlockRequest, actor *models.JWTClaims) (*models.ScheduleBlock, error) {
	return m.block, m.err
}

func (m *scheduleServiceMock) Update(ctx context.Context, id string, req dto.UpdateScheduleBlockRequest, actor *models.JWTClaims) (*models.ScheduleBlock, error) {
	return m.block, m.err
}

func (m *scheduleServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return m.err
}

type actingServiceMock struct {
	acting *models.Acting
	err    error
}

func (m *actingServiceMock) Create(ctx context.Context, req dto.CreateActingRequest) (*models.Acting, error) {
	return m.acting, m.err
}

func (m *actingServiceMock) Get(ctx context.Context, id string) (*models.Acting, error) {
	return m.acting, m.err
}

func (m *actingServiceMock) List(ctx context.Context, filter models.ActingFilter) ([]models.Acting, *models.Pagination, error) {
	return []models.Acting{*m.acting}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.err
}

func (m *actingServiceMock) Delete(ctx context.Context, id string) error {
	return m.err
}

type notificationDrainerStub struct {
	limit int
	err   error
}

func (n *notificationDrainerStub) DrainPending(ctx context.Context, limit int) (map[string][]string, error) {
	n.limit = limit
	if n.err != nil {
		return nil, n.err
	}
	return map[string][]string{"patient-1": {"Your appointment is confirmed for 2024-01-10 at 10:00."}}, nil
}

type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(ctx context.Context) error {
	return p.err
}

func TestScheduleHandlerList(t *testing.T) {
	mockSvc := &scheduleServiceMock{}
	handler := NewScheduleHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/schedules?acting_id=acting-1&week_day=2&page=3&limit=5", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acting-1", mockSvc.lastFilter.ActingID)
	require.NotNil(t, mockSvc.lastFilter.WeekDay)
	assert.Equal(t, 2, *mockSvc.lastFilter.WeekDay)
	assert.Equal(t, 3, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)

	c, w = newGinContext(http.MethodGet, "/schedules?week_day=wed", nil)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerWrites(t *testing.T) {
	mockSvc := &scheduleServiceMock{block: &models.ScheduleBlock{ID: "block-1"}}
	handler := NewScheduleHandler(mockSvc)
	body := []byte(`{"acting_id":"acting-1","start_date":"2024-01-01","start_time":540,"end_time":720,"week_day":2}`)

	c, w := newGinContext(http.MethodPost, "/schedules", body)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodPut, "/schedules/block-1", body)
	c.Params = gin.Params{{Key: "id", Value: "block-1"}}
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/schedules", []byte(`{"start_time":"nine"}`))
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	mockSvc.err = appErrors.WithField(appErrors.ErrValidation, "end_time", service.ReasonInvalidRange)
	c, w = newGinContext(http.MethodPost, "/schedules", body)
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeEnvelope(t, w)["error"].(map[string]interface{})["fields"].(map[string]interface{})
	assert.Equal(t, service.ReasonInvalidRange, fields["end_time"])

	mockSvc.err = nil
	c, _ = newGinContext(http.MethodDelete, "/schedules/block-1", nil)
	handler.Delete(c)
	require.Equal(t, http.StatusNoContent, c.Writer.Status())
}

func TestActingHandler(t *testing.T) {
	mockSvc := &actingServiceMock{acting: &models.Acting{ID: "acting-1"}}
	handler := NewActingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/actings", []byte(`{"professional_id":"p","clinic_id":"c","specialty_id":"s"}`))
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodGet, "/actings?clinic_id=c", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	mockSvc.err = appErrors.Clone(appErrors.ErrConflict, "acting is still referenced")
	c, w = newGinContext(http.MethodDelete, "/actings/acting-1", nil)
	handler.Delete(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestNotificationHandlerPending(t *testing.T) {
	drainer := &notificationDrainerStub{}
	handler := NewNotificationHandler(drainer)

	c, w := newGinContext(http.MethodGet, "/notifications/pending?limit=5", nil)
	handler.Pending(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, drainer.limit)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["patient-1"], 1)

	c, _ = newGinContext(http.MethodGet, "/notifications/pending?limit=-1", nil)
	handler.Pending(c)
	assert.Equal(t, 100, drainer.limit)

	drainer.err = appErrors.Wrap(errors.New("db down"), appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed")
	c, w = newGinContext(http.MethodGet, "/notifications/pending", nil)
	handler.Pending(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestMetricsHandlerProbes(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	handler := NewMetricsHandler(metrics, pingerStub{})

	c, w := newGinContext(http.MethodGet, "/health", nil)
	handler.Health(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	down := NewMetricsHandler(nil, pingerStub{err: errors.New("refused")})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	down.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, _ = newGinContext(http.MethodGet, "/metrics", nil)
	down.Prometheus(c)
	require.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`)
}
