package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/repository"
	"github.com/mstanic/courtside/internal/timezone"
)

var (
	ErrPatternNotFound = errors.New("availability pattern not found")
	ErrBlockNotFound   = errors.New("availability block not found")
	ErrNotOwner        = errors.New("resource belongs to another user")
	ErrDuplicateBlock  = errors.New("availability block already exists for this slot")
)

// AvailabilityService manages weekly recurring patterns and the concrete
// UTC blocks they expand into. Patterns are wall-clock rules in league
// time; blocks are the materialized slots the overlap engine consumes.
type AvailabilityService struct {
	patterns repository.PatternRepository
	blocks   repository.BlockRepository
	clock    *timezone.LeagueClock
	log      *zap.Logger
}

func NewAvailabilityService(
	patterns repository.PatternRepository,
	blocks repository.BlockRepository,
	clock *timezone.LeagueClock,
	log *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		patterns: patterns,
		blocks:   blocks,
		clock:    clock,
		log:      log,
	}
}

type PatternInput struct {
	DayOfWeek  int  `json:"day_of_week"`
	StartLocal int  `json:"start_minute"`
	EndLocal   int  `json:"end_minute"`
	Enabled    bool `json:"enabled"`
}

// CreatePattern stores the rule and immediately expands it over the
// scheduling horizon.
func (s *AvailabilityService) CreatePattern(ctx context.Context, userID uuid.UUID, in PatternInput) (*domain.RecurringPattern, error) {
	now := s.clock.Now()
	p := &domain.RecurringPattern{
		ID:         uuid.New(),
		UserID:     userID,
		DayOfWeek:  in.DayOfWeek,
		StartLocal: in.StartLocal,
		EndLocal:   in.EndLocal,
		Enabled:    in.Enabled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.patterns.Create(ctx, p); err != nil {
		return nil, err
	}
	if p.Enabled {
		if _, err := s.generateBlocks(ctx, p, now); err != nil {
			s.log.Error("expanding new pattern", zap.String("pattern_id", p.ID.String()), zap.Error(err))
		}
	}
	return p, nil
}

// UpdatePattern replaces the rule. Future blocks generated from the old
// rule are removed and, when the pattern stays enabled, regenerated from
// the new one. Past blocks are history and stay untouched.
func (s *AvailabilityService) UpdatePattern(ctx context.Context, userID, patternID uuid.UUID, in PatternInput) (*domain.RecurringPattern, error) {
	p, err := s.getOwnedPattern(ctx, userID, patternID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p.DayOfWeek = in.DayOfWeek
	p.StartLocal = in.StartLocal
	p.EndLocal = in.EndLocal
	p.Enabled = in.Enabled
	p.UpdatedAt = now
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.patterns.Update(ctx, p); err != nil {
		return nil, err
	}

	if _, err := s.blocks.DeleteFutureByPattern(ctx, p.ID, now); err != nil {
		return nil, err
	}
	if p.Enabled {
		if _, err := s.generateBlocks(ctx, p, now); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DeletePattern removes the rule and its future blocks.
func (s *AvailabilityService) DeletePattern(ctx context.Context, userID, patternID uuid.UUID) error {
	p, err := s.getOwnedPattern(ctx, userID, patternID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if _, err := s.blocks.DeleteFutureByPattern(ctx, p.ID, now); err != nil {
		return err
	}
	return s.patterns.Delete(ctx, p.ID)
}

func (s *AvailabilityService) ListPatterns(ctx context.Context, userID uuid.UUID) ([]domain.RecurringPattern, error) {
	return s.patterns.ListByUser(ctx, userID)
}

func (s *AvailabilityService) getOwnedPattern(ctx context.Context, userID, patternID uuid.UUID) (*domain.RecurringPattern, error) {
	p, err := s.patterns.GetByID(ctx, patternID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPatternNotFound
	}
	if p.UserID != userID {
		return nil, ErrNotOwner
	}
	return p, nil
}

// generateBlocks expands one pattern into fixed-length slots from now to
// the end of the horizon. Each slot's start is resolved through the league
// timezone for its own date, so a pattern spanning a daylight-saving
// transition lands on the right wall-clock time on both sides. Existing
// slots are left alone; the (user, start_time) constraint makes the
// expansion idempotent.
func (s *AvailabilityService) generateBlocks(ctx context.Context, p *domain.RecurringPattern, now time.Time) (int, error) {
	weekStartLocal := s.clock.UTCToLocal(s.clock.WeekStart(now))
	created := 0

	for day := 0; day < domain.DefaultHorizonWeeks*7; day++ {
		date := weekStartLocal.AddDate(0, 0, day)
		isoDay := (int(date.Weekday())+6)%7 + 1
		if isoDay != p.DayOfWeek {
			continue
		}

		for minute := p.StartLocal; minute+int(domain.BlockGranularity/time.Minute) <= p.EndLocal; minute += int(domain.BlockGranularity / time.Minute) {
			start := s.clock.At(date, minute)
			if !start.After(now) {
				continue
			}
			b := &domain.AvailabilityBlock{
				ID:        uuid.New(),
				UserID:    p.UserID,
				StartTime: start,
				EndTime:   start.Add(domain.BlockGranularity),
				PatternID: &p.ID,
				CreatedAt: now,
			}
			ok, err := s.blocks.Insert(ctx, b)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

// GenerateAll is the nightly sweep expanding every enabled pattern so the
// horizon keeps rolling forward.
func (s *AvailabilityService) GenerateAll(ctx context.Context) (int, error) {
	patterns, err := s.patterns.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	total := 0
	for i := range patterns {
		n, err := s.generateBlocks(ctx, &patterns[i], now)
		if err != nil {
			s.log.Error("expanding pattern",
				zap.String("pattern_id", patterns[i].ID.String()),
				zap.Error(err))
			continue
		}
		total += n
	}
	if total > 0 {
		s.log.Info("generated availability blocks", zap.Int("count", total))
	}
	return total, nil
}

type ManualBlockInput struct {
	StartTime time.Time `json:"start_time"`
}

// AddManualBlock creates a single one-off slot. The slot must start in the
// future; duplicates of an existing slot are rejected.
func (s *AvailabilityService) AddManualBlock(ctx context.Context, userID uuid.UUID, in ManualBlockInput) (*domain.AvailabilityBlock, error) {
	now := s.clock.Now()
	start := in.StartTime.UTC()
	if !start.After(now) {
		return nil, ErrStartInPast
	}

	b := &domain.AvailabilityBlock{
		ID:        uuid.New(),
		UserID:    userID,
		StartTime: start,
		EndTime:   start.Add(domain.BlockGranularity),
		CreatedAt: now,
	}
	created, err := s.blocks.Insert(ctx, b)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrDuplicateBlock
	}
	return b, nil
}

// DeleteBlock removes a single slot, owner only.
func (s *AvailabilityService) DeleteBlock(ctx context.Context, userID, blockID uuid.UUID) error {
	b, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return err
	}
	if b == nil {
		return ErrBlockNotFound
	}
	if b.UserID != userID {
		return ErrNotOwner
	}
	return s.blocks.Delete(ctx, blockID)
}

func (s *AvailabilityService) ListBlocks(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.AvailabilityBlock, error) {
	return s.blocks.ListByUserRange(ctx, userID, from, to)
}

// CleanupOldBlocks drops blocks that ended before the retention window.
func (s *AvailabilityService) CleanupOldBlocks(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -domain.BlockRetentionDays)
	n, err := s.blocks.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("removed old availability blocks", zap.Int64("count", n))
	}
	return n, nil
}
