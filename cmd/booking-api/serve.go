package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/medagenda/booking-api/api/swagger"
	"github.com/medagenda/booking-api/internal/handler"
	"github.com/medagenda/booking-api/internal/middleware"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/repository"
	"github.com/medagenda/booking-api/internal/service"
	"github.com/medagenda/booking-api/pkg/cache"
	"github.com/medagenda/booking-api/pkg/config"
	"github.com/medagenda/booking-api/pkg/database"
	"github.com/medagenda/booking-api/pkg/jobs"
	"github.com/medagenda/booking-api/pkg/logger"
	corsmiddleware "github.com/medagenda/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medagenda/booking-api/pkg/middleware/requestid"
	"github.com/medagenda/booking-api/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			return runServer(cfg, logr)
		},
	}
}

// handlers groups every HTTP handler mounted by the router.
type handlers struct {
	metrics       *handler.MetricsHandler
	calendar      *handler.CalendarHandler
	appointments  *handler.AppointmentHandler
	schedules     *handler.ScheduleHandler
	actings       *handler.ActingHandler
	notifications *handler.NotificationHandler
	exports       *handler.AgendaExportHandler
}

func runServer(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, idempotency keys disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	actingRepo := repository.NewActingRepository(db)
	blockRepo := repository.NewScheduleBlockRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	bookingRepo := repository.NewBookingRepository(db, cfg.Booking.LockTimeout)
	patientRepo := repository.NewPatientRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	exportRepo := repository.NewAgendaExportRepository(db)

	router := jobs.NewRouter()
	queue := jobs.NewQueue("background", router.Dispatch, jobs.QueueConfig{
		Workers:    maxInt(cfg.Notifications.Workers, cfg.Exports.WorkerConcurrency),
		MaxRetries: maxInt(cfg.Notifications.MaxRetries, cfg.Exports.WorkerRetries),
		RetryDelay: time.Second,
		Logger:     logr,
	})

	notificationSvc := service.NewNotificationService(notificationRepo, queue, logr, cfg.Notifications.Enabled)
	router.Handle(service.JobTypeNotification, notificationSvc.Handle)

	idempotencyEnabled := cfg.Idempotency.Enabled && redisClient != nil
	var idempotencyRepo service.IdempotencyRepository
	if redisClient != nil {
		idempotencyRepo = repository.NewIdempotencyRepository(redisClient, logr)
	}
	idempotencySvc := service.NewIdempotencyService(idempotencyRepo, cfg.Idempotency.TTL, logr, idempotencyEnabled)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	availabilitySvc := service.NewAvailabilityService(actingRepo, blockRepo, appointmentRepo, metrics, validate, logr, service.AvailabilityServiceConfig{
		MaxScanDays:    cfg.Availability.MaxScanDays,
		DefaultNumDays: cfg.Availability.DefaultNumDays,
		MaxNumDays:     cfg.Availability.MaxNumDays,
	})
	appointmentSvc := service.NewAppointmentService(
		bookingRepo,
		appointmentRepo,
		patientRepo,
		service.NewConflictChecker(logr),
		notificationSvc,
		idempotencySvc,
		auditRepo,
		metrics,
		validate,
		logr,
		service.AppointmentServiceConfig{RetryAttempts: cfg.Booking.RetryAttempts},
	)
	scheduleSvc := service.NewScheduleService(blockRepo, actingRepo, auditRepo, validate, logr, service.ScheduleServiceConfig{
		DefaultSlotInterval: cfg.Availability.DefaultSlotInterval,
	})
	actingSvc := service.NewActingService(actingRepo, validate, logr)

	h := handlers{
		metrics:       handler.NewMetricsHandler(metrics, db),
		calendar:      handler.NewCalendarHandler(availabilitySvc),
		appointments:  handler.NewAppointmentHandler(appointmentSvc),
		schedules:     handler.NewScheduleHandler(scheduleSvc),
		actings:       handler.NewActingHandler(actingSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
	}

	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Exports.Enabled {
		exportSvc, err := buildAgendaExports(ctx, cfg, logr, router, queue, exportRepo, actingRepo, appointmentRepo, validate)
		if err != nil {
			return err
		}
		h.exports = handler.NewAgendaExportHandler(exportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := newRouter(cfg, logr, metrics, authSvc, auditRepo, h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logr.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildAgendaExports(
	ctx context.Context,
	cfg *config.Config,
	logr *zap.Logger,
	router *jobs.Router,
	queue *jobs.Queue,
	repo *repository.AgendaExportRepository,
	actings *repository.ActingRepository,
	appointments *repository.AppointmentRepository,
	validate *validator.Validate,
) (*service.AgendaExportService, error) {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(appointments, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	worker := service.NewAgendaExportWorker(repo, exporter, cfg.Exports.WorkerRetries, logr)
	router.Handle(service.JobTypeAgendaExport, worker.Handle)

	svc := service.NewAgendaExportService(repo, actings, queue, exporter, validate, logr, service.AgendaExportServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	svc.RecoverPendingJobs(ctx)
	svc.StartCleanup(ctx)
	return svc, nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth *service.AuthService, audit *repository.AuditRepository, h handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []models.UserRole{models.RoleAdmin, models.RoleProfessional, models.RoleReceptionist}
	everyone := append([]models.UserRole{models.RolePatient}, staff...)

	api := r.Group(cfg.APIPrefix)

	calendar := api.Group("/calendar", middleware.OptionalJWT(auth))
	calendar.GET("/free-days", h.calendar.FreeDays)
	calendar.GET("/free-slots", h.calendar.FreeSlots)
	calendar.GET("/specialties", h.calendar.Specialties)

	secured := api.Group("", middleware.JWT(auth))

	appointments := secured.Group("/appointments", middleware.RequireRoles(everyone...))
	appointments.GET("", h.appointments.List)
	appointments.POST("", h.appointments.Create)
	appointments.POST("/check", h.appointments.Check)
	appointments.GET("/:id", h.appointments.Get)
	appointments.PUT("/:id", h.appointments.Reschedule)
	appointments.DELETE("/:id", h.appointments.Cancel)
	appointments.PATCH("/:id/notes", middleware.RequireRoles(models.RoleAdmin, models.RoleProfessional), h.appointments.UpdateNotes)

	schedules := secured.Group("/schedules", middleware.RequireRoles(staff...))
	schedules.GET("", h.schedules.List)
	schedules.GET("/:id", h.schedules.Get)
	scheduleWrites := schedules.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleProfessional))
	scheduleWrites.POST("", h.schedules.Create)
	scheduleWrites.PUT("/:id", h.schedules.Update)
	scheduleWrites.DELETE("/:id", h.schedules.Delete)

	actings := secured.Group("/actings", middleware.RequireRoles(staff...))
	actings.GET("", h.actings.List)
	actings.GET("/:id", h.actings.Get)
	actings.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(audit, logr, models.AuditActionActingCreate, "acting"), h.actings.Create)
	actings.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(audit, logr, models.AuditActionActingDelete, "acting"), h.actings.Delete)

	secured.GET("/notifications/pending", middleware.RequireRoles(models.RoleAdmin, models.RoleReceptionist), h.notifications.Pending)

	if h.exports != nil {
		api.GET("/agenda-exports/download/:token", h.exports.Download)
		exports := secured.Group("/agenda-exports", middleware.RequireRoles(staff...))
		exports.POST("", h.exports.Create)
		exports.GET("/:id", h.exports.Status)
	}

	return r
}

func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
