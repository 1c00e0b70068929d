package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

const scheduleResource = "schedule_block"

type scheduleBlockStore interface {
	Create(ctx context.Context, block *models.ScheduleBlock) error
	Update(ctx context.Context, block *models.ScheduleBlock) error
	FindByID(ctx context.Context, id string) (*models.ScheduleBlock, error)
	List(ctx context.Context, filter models.ScheduleBlockFilter) ([]models.ScheduleBlock, int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type actingFinder interface {
	FindByID(ctx context.Context, id string) (*models.Acting, error)
}

// ScheduleServiceConfig holds defaults applied to new blocks.
type ScheduleServiceConfig struct {
	DefaultSlotInterval int
}

// ScheduleService manages the recurring schedule blocks of actings.
type ScheduleService struct {
	repo      scheduleBlockStore
	actings   actingFinder
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleServiceConfig
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(repo scheduleBlockStore, actings actingFinder, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg ScheduleServiceConfig) *ScheduleService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultSlotInterval <= 0 {
		cfg.DefaultSlotInterval = models.DefaultSlotInterval
	}
	return &ScheduleService{repo: repo, actings: actings, audit: audit, validator: validate, logger: logger, cfg: cfg}
}

// List returns schedule blocks with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleBlockFilter) ([]models.ScheduleBlock, *models.Pagination, error) {
	if filter.WeekDay != nil && (*filter.WeekDay < 0 || *filter.WeekDay > 6) {
		return nil, nil, appErrors.Field("week_day", ReasonInvalidRange, "week_day must be between 0 (Monday) and 6 (Sunday)")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	blocks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list schedule blocks")
	}
	if blocks == nil {
		blocks = []models.ScheduleBlock{}
	}
	return blocks, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a schedule block by ID.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleBlock, error) {
	block, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule block not found")
		}
		return nil, internalError(err, "failed to load schedule block")
	}
	return block, nil
}

// Create validates and stores a new schedule block.
func (s *ScheduleService) Create(ctx context.Context, req dto.CreateScheduleBlockRequest, actor *models.JWTClaims) (*models.ScheduleBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule block payload")
	}
	if err := s.ensureOwner(ctx, req.ActingID, actor); err != nil {
		return nil, err
	}
	block := &models.ScheduleBlock{ActingID: req.ActingID}
	if err := s.apply(block, req.StartDate, req.EndDate, *req.StartTime, *req.EndTime, req.MaxVisits, *req.WeekDay, req.SlotInterval); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, block); err != nil {
		return nil, internalError(err, "failed to create schedule block")
	}
	s.emitAudit(ctx, actor, models.AuditActionScheduleCreate, block)
	return block, nil
}

// Update replaces the window of an existing block.
func (s *ScheduleService) Update(ctx context.Context, id string, req dto.UpdateScheduleBlockRequest, actor *models.JWTClaims) (*models.ScheduleBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule block payload")
	}
	block, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwner(ctx, block.ActingID, actor); err != nil {
		return nil, err
	}
	maxVisits, interval := block.MaxVisits, block.SlotInterval
	if req.MaxVisits != nil {
		maxVisits = *req.MaxVisits
	}
	if req.SlotInterval != nil {
		interval = *req.SlotInterval
	}
	if err := s.apply(block, req.StartDate, req.EndDate, *req.StartTime, *req.EndTime, &maxVisits, *req.WeekDay, &interval); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, block); err != nil {
		return nil, internalError(err, "failed to update schedule block")
	}
	s.emitAudit(ctx, actor, models.AuditActionScheduleUpdate, block)
	return block, nil
}

// Delete removes a schedule block. Existing appointments are kept.
func (s *ScheduleService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	block, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureOwner(ctx, block.ActingID, actor); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete schedule block")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule block not found")
	}
	s.emitAudit(ctx, actor, models.AuditActionScheduleDelete, block)
	return nil
}

func (s *ScheduleService) apply(block *models.ScheduleBlock, rawStart string, rawEnd *string, start, end int, maxVisits *int, weekDay int, interval *int) error {
	startDate, err := parseDayField(rawStart, "start_date")
	if err != nil {
		return err
	}
	endDate, err := parseOptionalDayField(rawEnd, "end_date")
	if err != nil {
		return err
	}
	if endDate != nil && endDate.Before(startDate) {
		return appErrors.Field("end_date", ReasonInvalidRange, "end_date must not be before start_date")
	}
	if start >= end {
		return appErrors.Field("end_time", ReasonInvalidRange, "end_time must be after start_time")
	}

	block.StartDate = startDate
	block.EndDate = endDate
	block.StartTime = models.MinuteOfDay(start)
	block.EndTime = models.MinuteOfDay(end)
	block.WeekDay = weekDay
	block.MaxVisits = 1
	if maxVisits != nil {
		block.MaxVisits = *maxVisits
	}
	block.SlotInterval = s.cfg.DefaultSlotInterval
	if interval != nil && *interval > 0 {
		block.SlotInterval = *interval
	}
	return nil
}

// ensureOwner checks the acting exists and, for professionals, that it is theirs.
func (s *ScheduleService) ensureOwner(ctx context.Context, actingID string, actor *models.JWTClaims) error {
	acting, err := s.actings.FindByID(ctx, actingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundField("acting_id", "acting not found")
		}
		return internalError(err, "failed to load acting")
	}
	if actor != nil && actor.Role == models.RoleProfessional && acting.ProfessionalID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "professionals may only manage their own schedules")
	}
	return nil
}

func (s *ScheduleService) emitAudit(ctx context.Context, actor *models.JWTClaims, action string, block *models.ScheduleBlock) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(block)
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   scheduleResource,
		ResourceID: &block.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "schedule-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record schedule audit", zap.Error(err))
	}
}
