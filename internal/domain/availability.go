package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultHorizonWeeks is how far ahead recurring patterns are expanded
// into concrete blocks.
const DefaultHorizonWeeks = 2

// BlockRetentionDays is how long past availability blocks are kept before
// the weekly cleanup removes them.
const BlockRetentionDays = 14

var ErrInvalidTimeRange = errors.New("start time must be before end time")

// RecurringPattern is a weekly availability rule in league wall-clock time.
// StartLocal and EndLocal are minutes since midnight; DayOfWeek follows ISO
// numbering (1=Monday, 7=Sunday).
type RecurringPattern struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	DayOfWeek  int       `json:"day_of_week"`
	StartLocal int       `json:"start_minute"`
	EndLocal   int       `json:"end_minute"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *RecurringPattern) Validate() error {
	if p.DayOfWeek < 1 || p.DayOfWeek > 7 {
		return fmt.Errorf("day_of_week must be between 1 (Monday) and 7 (Sunday), got %d", p.DayOfWeek)
	}
	if p.StartLocal < 0 || p.EndLocal > 24*60 {
		return fmt.Errorf("times must fall within a single day")
	}
	if p.StartLocal >= p.EndLocal {
		return ErrInvalidTimeRange
	}
	return nil
}

// AvailabilityBlock is one fixed-granularity UTC slot of committed
// availability. PatternID is nil for one-off manual blocks.
type AvailabilityBlock struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	PatternID *uuid.UUID `json:"pattern_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (b *AvailabilityBlock) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}
