package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/models"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

type availabilityActingReader interface {
	FindByID(ctx context.Context, id string) (*models.Acting, error)
	ListSpecialties(ctx context.Context, clinicID string) ([]models.SpecialtySummary, error)
}

type availabilityBlockReader interface {
	ListActiveOn(ctx context.Context, actingID string, day models.Date) ([]models.ScheduleBlock, error)
	ListOpenByClinicSpecialty(ctx context.Context, clinicID, specialtyID string) ([]models.ScheduleBlock, error)
}

type availabilityAppointmentReader interface {
	ListOnDay(ctx context.Context, actingID string, day models.Date) ([]models.Appointment, error)
	ListForActingsBetween(ctx context.Context, actingIDs []string, from, to models.Date) ([]models.Appointment, error)
}

// AvailabilityServiceConfig bounds the scans.
type AvailabilityServiceConfig struct {
	// MaxScanDays caps how many calendar days FreeDays may advance.
	MaxScanDays    int
	DefaultNumDays int
	MaxNumDays     int
	// ChunkDays is the window of appointments loaded per query while scanning.
	ChunkDays int
	Now       func() time.Time
}

// AvailabilityService answers free day and free slot queries. It never writes.
type AvailabilityService struct {
	actings      availabilityActingReader
	blocks       availabilityBlockReader
	appointments availabilityAppointmentReader
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          AvailabilityServiceConfig
}

// NewAvailabilityService constructs the scanner.
func NewAvailabilityService(
	actings availabilityActingReader,
	blocks availabilityBlockReader,
	appointments availabilityAppointmentReader,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AvailabilityServiceConfig,
) *AvailabilityService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxScanDays <= 0 {
		cfg.MaxScanDays = 730
	}
	if cfg.DefaultNumDays <= 0 {
		cfg.DefaultNumDays = 7
	}
	if cfg.MaxNumDays <= 0 {
		cfg.MaxNumDays = 60
	}
	if cfg.ChunkDays <= 0 {
		cfg.ChunkDays = 31
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AvailabilityService{
		actings:      actings,
		blocks:       blocks,
		appointments: appointments,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// FreeSlots returns the ascending free slot starts of a day for one acting, or the union
// across every acting of a clinic specialty.
func (s *AvailabilityService) FreeSlots(ctx context.Context, q dto.FreeSlotsQuery) ([]models.MinuteOfDay, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, validationError(err, "invalid free slots query")
	}
	day, err := parseDayField(q.Day, "day")
	if err != nil {
		return nil, err
	}

	if q.ActingID != "" {
		return s.freeSlotsForActing(ctx, q.ActingID, day)
	}
	if q.ClinicID == "" || q.SpecialtyID == "" {
		return nil, appErrors.Field("acting_id", ReasonRequired, "acting_id or clinic_id and specialty_id are required")
	}

	open, err := s.blocks.ListOpenByClinicSpecialty(ctx, q.ClinicID, q.SpecialtyID)
	if err != nil {
		return nil, internalError(err, "failed to load schedule blocks")
	}
	blocks := make([]models.ScheduleBlock, 0, len(open))
	for _, b := range open {
		if b.ActiveOn(day) {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return []models.MinuteOfDay{}, nil
	}
	appts, err := s.appointments.ListForActingsBetween(ctx, actingIDsOf(blocks), day, day)
	if err != nil {
		return nil, internalError(err, "failed to load appointments")
	}
	return freeStarts(day, blocks, indexAppointments(appts)), nil
}

func (s *AvailabilityService) freeSlotsForActing(ctx context.Context, actingID string, day models.Date) ([]models.MinuteOfDay, error) {
	if _, err := s.actings.FindByID(ctx, actingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundField("acting_id", "acting not found")
		}
		return nil, internalError(err, "failed to load acting")
	}
	blocks, err := s.blocks.ListActiveOn(ctx, actingID, day)
	if err != nil {
		return nil, internalError(err, "failed to load schedule blocks")
	}
	if len(blocks) == 0 {
		return []models.MinuteOfDay{}, nil
	}
	appts, err := s.appointments.ListOnDay(ctx, actingID, day)
	if err != nil {
		return nil, internalError(err, "failed to load appointments")
	}
	return freeStarts(day, blocks, indexAppointments(appts)), nil
}

// FreeDays returns up to num_days ascending dates on or after start_date with at least one
// free slot for any acting of the clinic specialty. The scan stops after MaxScanDays days.
func (s *AvailabilityService) FreeDays(ctx context.Context, q dto.FreeDaysQuery) ([]models.Date, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, validationError(err, "invalid free days query")
	}

	start := models.NewDate(s.cfg.Now())
	if q.StartDate != "" {
		parsed, err := parseDayField(q.StartDate, "start_date")
		if err != nil {
			return nil, err
		}
		start = parsed
	}

	numDays := q.NumDays
	if numDays <= 0 {
		numDays = s.cfg.DefaultNumDays
	}
	if numDays > s.cfg.MaxNumDays {
		numDays = s.cfg.MaxNumDays
	}

	var cutoff *models.MinuteOfDay
	if q.FirstDayStartTime != "" {
		parsed, err := models.ParseMinuteOfDay(q.FirstDayStartTime)
		if err != nil {
			return nil, appErrors.Field("first_day_startime", ReasonInvalidTime, "first_day_startime must be HH:MM or minutes since midnight")
		}
		cutoff = &parsed
	}

	blocks, err := s.blocks.ListOpenByClinicSpecialty(ctx, q.ClinicID, q.SpecialtyID)
	if err != nil {
		return nil, internalError(err, "failed to load schedule blocks")
	}

	var weekdays [7]bool
	anyOpen := false
	for _, b := range blocks {
		if b.Open() && b.WeekDay >= 0 && b.WeekDay < 7 {
			weekdays[b.WeekDay] = true
			anyOpen = true
		}
	}
	result := make([]models.Date, 0, numDays)
	if !anyOpen {
		s.metrics.ObserveFreeDaysScan(0, 0)
		return result, nil
	}

	last := start.AddDays(s.cfg.MaxScanDays - 1)
	if latest, bounded := latestEndDate(blocks); bounded && latest.Before(last) {
		last = latest
	}
	actingIDs := actingIDsOf(blocks)

	scanned := 0
	for chunkStart := start; !chunkStart.After(last) && len(result) < numDays; chunkStart = chunkStart.AddDays(s.cfg.ChunkDays) {
		chunkEnd := chunkStart.AddDays(s.cfg.ChunkDays - 1)
		if chunkEnd.After(last) {
			chunkEnd = last
		}
		appts, err := s.appointments.ListForActingsBetween(ctx, actingIDs, chunkStart, chunkEnd)
		if err != nil {
			return nil, internalError(err, "failed to load appointments")
		}
		index := indexAppointments(appts)

		for day := chunkStart; !day.After(chunkEnd) && len(result) < numDays; day = day.AddDays(1) {
			scanned++
			if !weekdays[day.WeekDay()] {
				continue
			}
			var dayCutoff *models.MinuteOfDay
			if day.Equal(start) {
				dayCutoff = cutoff
			}
			if dayHasCapacity(day, blocks, index, dayCutoff) {
				result = append(result, day)
			}
		}
	}

	s.metrics.ObserveFreeDaysScan(scanned, len(result))
	if len(result) < numDays {
		s.logger.Debug("free days scan exhausted",
			zap.String("clinic_id", q.ClinicID),
			zap.String("specialty_id", q.SpecialtyID),
			zap.Int("scanned_days", scanned),
			zap.Int("found", len(result)),
		)
	}
	return result, nil
}

// AvailableSpecialties lists the specialties bookable at a clinic.
func (s *AvailabilityService) AvailableSpecialties(ctx context.Context, clinicID string) ([]models.SpecialtySummary, error) {
	if clinicID == "" {
		return nil, appErrors.Field("clinic_id", ReasonRequired, "clinic_id is required")
	}
	specialties, err := s.actings.ListSpecialties(ctx, clinicID)
	if err != nil {
		return nil, internalError(err, "failed to list specialties")
	}
	if specialties == nil {
		specialties = []models.SpecialtySummary{}
	}
	return specialties, nil
}

type appointmentKey struct {
	actingID string
	day      string
}

func indexAppointments(appts []models.Appointment) map[appointmentKey][]models.Appointment {
	index := make(map[appointmentKey][]models.Appointment)
	for _, a := range appts {
		key := appointmentKey{actingID: a.ActingID, day: a.ScheduledDay.String()}
		index[key] = append(index[key], a)
	}
	return index
}

// freeSlotsOf walks the block grid and yields each start whose overlap count is below capacity.
func freeSlotsOf(block models.ScheduleBlock, appts []models.Appointment, yield func(models.MinuteOfDay) bool) {
	if !block.Open() {
		return
	}
	step := block.Step()
	for _, start := range block.Slots() {
		end := start + models.MinuteOfDay(step)
		if countOverlaps(appts, "", start, end, step) < block.MaxVisits {
			if !yield(start) {
				return
			}
		}
	}
}

func freeStarts(day models.Date, blocks []models.ScheduleBlock, index map[appointmentKey][]models.Appointment) []models.MinuteOfDay {
	seen := make(map[models.MinuteOfDay]struct{})
	starts := make([]models.MinuteOfDay, 0)
	for _, b := range blocks {
		if !b.ActiveOn(day) {
			continue
		}
		appts := index[appointmentKey{actingID: b.ActingID, day: day.String()}]
		freeSlotsOf(b, appts, func(start models.MinuteOfDay) bool {
			if _, ok := seen[start]; !ok {
				seen[start] = struct{}{}
				starts = append(starts, start)
			}
			return true
		})
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	return starts
}

// dayHasCapacity reports whether some block active on day has a free slot. With a cutoff only
// blocks starting strictly after it are considered.
func dayHasCapacity(day models.Date, blocks []models.ScheduleBlock, index map[appointmentKey][]models.Appointment, cutoff *models.MinuteOfDay) bool {
	for _, b := range blocks {
		if !b.ActiveOn(day) {
			continue
		}
		if cutoff != nil && b.StartTime <= *cutoff {
			continue
		}
		found := false
		appts := index[appointmentKey{actingID: b.ActingID, day: day.String()}]
		freeSlotsOf(b, appts, func(models.MinuteOfDay) bool {
			found = true
			return false
		})
		if found {
			return true
		}
	}
	return false
}

func actingIDsOf(blocks []models.ScheduleBlock) []string {
	seen := make(map[string]struct{}, len(blocks))
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := seen[b.ActingID]; ok {
			continue
		}
		seen[b.ActingID] = struct{}{}
		ids = append(ids, b.ActingID)
	}
	return ids
}

// latestEndDate returns the last day any block is active. bounded is false when some block
// is open-ended.
func latestEndDate(blocks []models.ScheduleBlock) (latest models.Date, bounded bool) {
	for _, b := range blocks {
		if b.EndDate == nil {
			return models.Date{}, false
		}
		if !bounded || b.EndDate.After(latest) {
			latest = *b.EndDate
			bounded = true
		}
	}
	return latest, bounded
}
