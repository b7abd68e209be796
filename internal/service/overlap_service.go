package service

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/repository"
	"github.com/mstanic/courtside/internal/timezone"
)

// OverlapService computes mutual free time between players from their
// availability blocks, excluding anything already claimed by a pending or
// confirmed match.
type OverlapService struct {
	blocks  repository.BlockRepository
	matches repository.MatchRepository
	users   repository.UserRepository
	clock   *timezone.LeagueClock
	log     *zap.Logger
}

func NewOverlapService(
	blocks repository.BlockRepository,
	matches repository.MatchRepository,
	users repository.UserRepository,
	clock *timezone.LeagueClock,
	log *zap.Logger,
) *OverlapService {
	return &OverlapService{
		blocks:  blocks,
		matches: matches,
		users:   users,
		clock:   clock,
		log:     log,
	}
}

// FreeIntersection returns the slots within [from, to) where both users are
// available and neither has an active match. A slot touching any active
// match of either player is excluded whole, even on partial overlap.
func (s *OverlapService) FreeIntersection(ctx context.Context, userA, userB uuid.UUID, from, to time.Time) ([]domain.Interval, error) {
	blocksA, err := s.blocks.ListByUserRange(ctx, userA, from, to)
	if err != nil {
		return nil, err
	}
	blocksB, err := s.blocks.ListByUserRange(ctx, userB, from, to)
	if err != nil {
		return nil, err
	}
	if len(blocksA) == 0 || len(blocksB) == 0 {
		return nil, nil
	}

	busy, err := s.matches.ListActiveInRange(ctx, []uuid.UUID{userA, userB}, from, to)
	if err != nil {
		return nil, err
	}

	var shared []domain.Interval
	for i := range blocksA {
		for j := range blocksB {
			iv, ok := domain.Intersect(blocksA[i].Interval(), blocksB[j].Interval())
			if !ok {
				continue
			}
			if overlapsAny(iv, busy) {
				continue
			}
			shared = append(shared, iv)
		}
	}
	return domain.DedupeSort(shared), nil
}

func overlapsAny(iv domain.Interval, matches []domain.Match) bool {
	for i := range matches {
		if iv.Overlaps(matches[i].Interval()) {
			return true
		}
	}
	return false
}

// Candidate is one potential opponent ranked by shared free time.
type Candidate struct {
	User         domain.User       `json:"user"`
	SharedSlots  []domain.Interval `json:"shared_slots"`
	TotalMinutes int               `json:"total_minutes"`
}

// RankCandidates lists active players ordered by total mutual free time with
// the given user over [from, to), most first. Players with no shared time
// are omitted. Ties are broken by user ID so the ordering is stable.
func (s *OverlapService) RankCandidates(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Candidate, error) {
	others, err := s.users.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for i := range others {
		slots, err := s.FreeIntersection(ctx, userID, others[i].ID, from, to)
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			continue
		}
		total := 0
		for _, iv := range slots {
			total += int(iv.Duration() / time.Minute)
		}
		candidates = append(candidates, Candidate{
			User:         others[i],
			SharedSlots:  slots,
			TotalMinutes: total,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TotalMinutes != candidates[j].TotalMinutes {
			return candidates[i].TotalMinutes > candidates[j].TotalMinutes
		}
		return bytes.Compare(candidates[i].User.ID[:], candidates[j].User.ID[:]) < 0
	})
	return candidates, nil
}
