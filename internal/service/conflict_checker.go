package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/models"
	"github.com/medagenda/booking-api/internal/repository"
	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

// BookingCandidate is an appointment write awaiting admission.
type BookingCandidate struct {
	ActingID string
	Day      models.Date
	Start    models.MinuteOfDay
	// End may be nil, in which case the visit lasts one slot of the governing block.
	End *models.MinuteOfDay
	// ExcludeID skips the appointment being rescheduled when counting overlaps.
	ExcludeID string
}

// Admission describes an accepted candidate.
type Admission struct {
	Block       models.ScheduleBlock
	Start       models.MinuteOfDay
	End         models.MinuteOfDay
	Overlapping int
}

// ConflictChecker decides whether a candidate appointment fits the acting's schedule
// and capacity. It never writes.
type ConflictChecker struct {
	logger *zap.Logger
}

// NewConflictChecker constructs a ConflictChecker.
func NewConflictChecker(logger *zap.Logger) *ConflictChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{logger: logger}
}

// Validate loads the acting's blocks and appointments for the candidate day through store
// and admits or rejects the candidate.
func (c *ConflictChecker) Validate(ctx context.Context, store repository.BookingStore, candidate BookingCandidate) (*Admission, error) {
	if err := checkCandidateRange(candidate); err != nil {
		return nil, err
	}

	exists, err := store.ActingExists(ctx, candidate.ActingID)
	if err != nil {
		return nil, internalError(err, "failed to load acting")
	}
	if !exists {
		return nil, notFoundField("acting_id", "acting not found")
	}

	blocks, err := store.ActiveBlocks(ctx, candidate.ActingID, candidate.Day)
	if err != nil {
		return nil, internalError(err, "failed to load schedule blocks")
	}
	var existing []models.Appointment
	if len(blocks) > 0 {
		existing, err = store.AppointmentsOn(ctx, candidate.ActingID, candidate.Day)
		if err != nil {
			return nil, internalError(err, "failed to load appointments")
		}
	}

	admission, err := c.Admit(candidate, blocks, existing)
	if err != nil {
		c.logger.Debug("booking rejected",
			zap.String("acting_id", candidate.ActingID),
			zap.String("day", candidate.Day.String()),
			zap.Int("start_time", int(candidate.Start)),
			zap.Error(err),
		)
		return nil, err
	}
	return admission, nil
}

// Admit applies the admission rules to already loaded state.
func (c *ConflictChecker) Admit(candidate BookingCandidate, blocks []models.ScheduleBlock, existing []models.Appointment) (*Admission, error) {
	if err := checkCandidateRange(candidate); err != nil {
		return nil, err
	}

	active := make([]models.ScheduleBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.ActiveOn(candidate.Day) {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		msg := fmt.Sprintf("no schedule covers %s", candidate.Day)
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrNoAvailability, msg), "scheduled_day", ReasonNoSchedule)
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].StartTime < active[j].StartTime })

	inHours := make([]models.ScheduleBlock, 0, len(active))
	startInside := false
	for _, b := range active {
		if candidate.Start >= b.StartTime && candidate.Start < b.EndTime {
			startInside = true
		}
		end := candidateEnd(candidate, b)
		if end > candidate.Start && b.Contains(candidate.Start, end) {
			inHours = append(inHours, b)
		}
	}
	if len(inHours) == 0 {
		field := "start_time"
		if startInside {
			field = "end_time"
		}
		msg := fmt.Sprintf("%s is outside the schedule hours", field)
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrOutOfHours, msg), field, ReasonOutOfHours)
	}

	onGrid := inHours[:0]
	for _, b := range inHours {
		if b.OnGrid(candidate.Start) {
			onGrid = append(onGrid, b)
		}
	}
	if len(onGrid) == 0 {
		msg := fmt.Sprintf("start_time %s is not a slot start", candidate.Start)
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrOutOfHours, msg), "start_time", ReasonOffGrid)
	}

	for _, b := range onGrid {
		end := candidateEnd(candidate, b)
		overlapping := countOverlaps(existing, candidate.ExcludeID, candidate.Start, end, b.Step())
		if overlapping < b.MaxVisits {
			return &Admission{Block: b, Start: candidate.Start, End: end, Overlapping: overlapping}, nil
		}
	}

	msg := fmt.Sprintf("slot %s on %s is full", candidate.Start, candidate.Day)
	return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrSlotFull, msg), "start_time", ReasonSlotFull)
}

func checkCandidateRange(candidate BookingCandidate) error {
	if !candidate.Start.Valid() {
		return appErrors.Field("start_time", ReasonInvalidTime, "start_time must be within [0, 1440)")
	}
	if candidate.End != nil {
		if !candidate.End.ValidEnd() {
			return appErrors.Field("end_time", ReasonInvalidTime, "end_time must be within (0, 1440]")
		}
		if *candidate.End <= candidate.Start {
			return appErrors.Field("end_time", ReasonInvalidRange, "end_time must be after start_time")
		}
	}
	return nil
}

func candidateEnd(candidate BookingCandidate, block models.ScheduleBlock) models.MinuteOfDay {
	if candidate.End != nil {
		return *candidate.End
	}
	return candidate.Start + models.MinuteOfDay(block.Step())
}

// countOverlaps counts appointments intersecting [start, end). Rows without an end
// occupy fallback minutes.
func countOverlaps(appts []models.Appointment, excludeID string, start, end models.MinuteOfDay, fallback int) int {
	n := 0
	for _, a := range appts {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.Overlaps(start, end, fallback) {
			n++
		}
	}
	return n
}
