package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type observerStub struct {
	method string
	path   string
	status int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.method, o.path, o.status = method, path, status
}

type auditWriterStub struct {
	logs []models.AuditLog
	err  error
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return a.err
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := gin.New()
	router.GET("/private", JWT(auth), func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		c.String(http.StatusOK, value.(*models.JWTClaims).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/private", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/private", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/private", "Bearer bad").Code)

	w := serve(router, http.MethodGet, "/private", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RolePatient}}
	router := gin.New()
	router.GET("/public", OptionalJWT(auth), func(c *gin.Context) {
		_, ok := c.Get(ContextUserKey)
		if ok {
			c.String(http.StatusOK, "claims")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", serve(router, http.MethodGet, "/public", "").Body.String())
	assert.Equal(t, "anonymous", serve(router, http.MethodGet, "/public", "Bearer bad").Body.String())
	assert.Equal(t, "claims", serve(router, http.MethodGet, "/public", "Bearer good").Body.String())
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		claims *models.JWTClaims
		status int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"allowed", &models.JWTClaims{UserID: "a", Role: models.RoleReceptionist}, http.StatusNoContent},
		{"denied", &models.JWTClaims{UserID: "p", Role: models.RolePatient}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/", func(c *gin.Context) {
				if tc.claims != nil {
					c.Set(ContextUserKey, tc.claims)
				}
				c.Next()
			}, RequireRoles(models.RoleAdmin, models.RoleReceptionist), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
			assert.Equal(t, tc.status, serve(router, http.MethodGet, "/", "").Code)
		})
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/appointments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/appointments/abc", "")
	assert.Equal(t, "/appointments/:id", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	serve(router, http.MethodGet, "/nowhere", "")
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}

func TestAuditRecordsSuccessfulWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &auditWriterStub{err: errors.New("db down")}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
		c.Next()
	})
	router.DELETE("/actings/:id", Audit(repo, nil, models.AuditActionActingDelete, "acting"), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/actings/a1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/actings/missing", "").Code)

	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	assert.Equal(t, models.AuditActionActingDelete, log.Action)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "a1", *log.ResourceID)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "admin", *log.UserID)
}
