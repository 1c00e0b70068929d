package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/pkg/database"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

type actingStore interface {
	Create(ctx context.Context, acting *models.Acting) error
	FindByID(ctx context.Context, id string) (*models.Acting, error)
	List(ctx context.Context, filter models.ActingFilter) ([]models.Acting, int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ActingService manages (professional, clinic, specialty) actings.
type ActingService struct {
	repo      actingStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActingService constructs an ActingService.
func NewActingService(repo actingStore, validate *validator.Validate, logger *zap.Logger) *ActingService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActingService{repo: repo, validator: validate, logger: logger}
}

// Create stores a new acting. Identical triples are allowed.
func (s *ActingService) Create(ctx context.Context, req dto.CreateActingRequest) (*models.Acting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid acting payload")
	}
	acting := &models.Acting{
		ProfessionalID: req.ProfessionalID,
		ClinicID:       req.ClinicID,
		SpecialtyID:    req.SpecialtyID,
	}
	if err := s.repo.Create(ctx, acting); err != nil {
		return nil, internalError(err, "failed to create acting")
	}
	return acting, nil
}

// Get returns an acting by ID.
func (s *ActingService) Get(ctx context.Context, id string) (*models.Acting, error) {
	acting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "acting not found")
		}
		return nil, internalError(err, "failed to load acting")
	}
	return acting, nil
}

// List returns actings with pagination metadata.
func (s *ActingService) List(ctx context.Context, filter models.ActingFilter) ([]models.Acting, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	actings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list actings")
	}
	if actings == nil {
		actings = []models.Acting{}
	}
	return actings, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Delete removes an acting.
func (s *ActingService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "acting still has schedule blocks or appointments")
		}
		return internalError(err, "failed to delete acting")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "acting not found")
	}
	return nil
}
