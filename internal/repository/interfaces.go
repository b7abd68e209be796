package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mstanic/courtside/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an overlapping pending/confirmed match
	// blocks the requested write.
	ErrConflict = errors.New("overlapping match exists")
	// ErrStaleStatus is returned when a compare-and-set transition finds
	// the row no longer in the expected status.
	ErrStaleStatus = errors.New("status changed concurrently")
	// ErrDuplicateSlot is returned when a manual block insert hits the
	// (user, start_time) uniqueness constraint.
	ErrDuplicateSlot = errors.New("availability block already exists for this slot")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListActive returns active users, excluding the given user.
	ListActive(ctx context.Context, exclude uuid.UUID) ([]domain.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus, vacationUntil *time.Time) error
	// ReactivateVacationsEnded flips vacationing users whose vacation_until
	// has passed back to active and returns how many were updated.
	ReactivateVacationsEnded(ctx context.Context, now time.Time) (int64, error)
}

type PatternRepository interface {
	Create(ctx context.Context, p *domain.RecurringPattern) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurringPattern, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RecurringPattern, error)
	// ListEnabled returns every enabled pattern across all users, for the
	// nightly generation sweep.
	ListEnabled(ctx context.Context) ([]domain.RecurringPattern, error)
	Update(ctx context.Context, p *domain.RecurringPattern) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type BlockRepository interface {
	// Insert creates the block unless a block with the same
	// (user, start_time) already exists. The store enforces uniqueness;
	// created is false when the slot was already taken.
	Insert(ctx context.Context, b *domain.AvailabilityBlock) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AvailabilityBlock, error)
	ListByUserRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.AvailabilityBlock, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteFutureByPattern removes blocks generated from the pattern that
	// start after the given instant. Past blocks are immutable history.
	DeleteFutureByPattern(ctx context.Context, patternID uuid.UUID, after time.Time) (int64, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type MatchRepository interface {
	// CreateChallenge inserts the match after verifying, inside one
	// transaction, that neither player has an overlapping pending or
	// confirmed match. Returns ErrConflict otherwise.
	CreateChallenge(ctx context.Context, m *domain.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *domain.MatchStatus, upcoming *bool, limit int) ([]domain.Match, error)
	// ListActiveInRange returns pending/confirmed matches involving any of
	// the given users that overlap [from, to).
	ListActiveInRange(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) ([]domain.Match, error)
	// Confirm transitions pending → confirmed, re-checking inside the
	// transaction that the accepting player has no conflicting match.
	// Returns ErrStaleStatus or ErrConflict.
	Confirm(ctx context.Context, id uuid.UUID, playerB uuid.UUID, at time.Time) error
	// Decline transitions pending → declined. Returns ErrStaleStatus when
	// the match is no longer pending.
	Decline(ctx context.Context, id uuid.UUID, at time.Time) error
	// Expire transitions pending → expired. Returns ErrStaleStatus when
	// the match is no longer pending.
	Expire(ctx context.Context, id uuid.UUID, at time.Time) error
	// Cancel transitions from the given status to canceled. Returns
	// ErrStaleStatus when the status changed concurrently.
	Cancel(ctx context.Context, id uuid.UUID, from domain.MatchStatus, by uuid.UUID, reason *string, at time.Time) error
	// ListExpirable returns pending matches satisfying the expiration
	// predicate at now, bounded by limit.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Match, error)
}

type NotificationRepository interface {
	// GetPreferences returns (nil, nil) when the user has no row yet.
	GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error)
	// SavePreferences upserts the row.
	SavePreferences(ctx context.Context, p *domain.Preferences) error
	Enqueue(ctx context.Context, n *domain.QueuedNotification) error
	// ListDue returns non-terminal rows with scheduled_for <= now, oldest
	// first, bounded by limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.QueuedNotification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time, via domain.Channel, fallbackUsed bool) error
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, reason string) error
	// DeletePendingForMatch withdraws unsent notifications of the given
	// categories attached to a match.
	DeletePendingForMatch(ctx context.Context, matchID uuid.UUID, categories []domain.Category) (int64, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
