package models

import "time"

// DefaultSlotInterval is used for blocks persisted without an explicit interval.
const DefaultSlotInterval = 30

// ScheduleBlock is a recurring weekly availability window of an Acting.
type ScheduleBlock struct {
	ID           string      `db:"id" json:"id"`
	ActingID     string      `db:"acting_id" json:"acting_id"`
	StartDate    Date        `db:"start_date" json:"start_date"`
	EndDate      *Date       `db:"end_date" json:"end_date,omitempty"`
	StartTime    MinuteOfDay `db:"start_time" json:"start_time"`
	EndTime      MinuteOfDay `db:"end_time" json:"end_time"`
	MaxVisits    int         `db:"max_visits" json:"max_visits"`
	WeekDay      int         `db:"week_day" json:"week_day"`
	SlotInterval int         `db:"slot_interval" json:"slot_interval"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// ScheduleBlockFilter narrows schedule block listings.
type ScheduleBlockFilter struct {
	ActingID string
	WeekDay  *int
	Page     int
	PageSize int
}

// Open reports whether the block accepts bookings at all.
func (b ScheduleBlock) Open() bool {
	return b.MaxVisits > 0
}

// ActiveOn reports whether the block governs day.
func (b ScheduleBlock) ActiveOn(day Date) bool {
	if b.WeekDay != day.WeekDay() {
		return false
	}
	if day.Before(b.StartDate) {
		return false
	}
	return b.EndDate == nil || !day.After(*b.EndDate)
}

// Step returns the slot granularity in minutes.
func (b ScheduleBlock) Step() int {
	if b.SlotInterval <= 0 {
		return DefaultSlotInterval
	}
	return b.SlotInterval
}

// Contains reports whether [start, end) lies inside the block hours.
func (b ScheduleBlock) Contains(start, end MinuteOfDay) bool {
	return start >= b.StartTime && end <= b.EndTime
}

// OnGrid reports whether start is one of the block's slot starts.
func (b ScheduleBlock) OnGrid(start MinuteOfDay) bool {
	if start < b.StartTime {
		return false
	}
	return (int(start-b.StartTime))%b.Step() == 0
}

// Slots enumerates every slot start whose full interval fits the block.
func (b ScheduleBlock) Slots() []MinuteOfDay {
	step := MinuteOfDay(b.Step())
	if b.EndTime <= b.StartTime {
		return nil
	}
	slots := make([]MinuteOfDay, 0, int(b.EndTime-b.StartTime)/int(step))
	for s := b.StartTime; s+step <= b.EndTime; s += step {
		slots = append(slots, s)
	}
	return slots
}
