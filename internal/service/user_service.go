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
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidStatus     = errors.New("invalid user status")
	ErrVacationEndInPast = errors.New("vacation end must be in the future")
)

type UserService struct {
	users repository.UserRepository
	clock *timezone.LeagueClock
	log   *zap.Logger
}

func NewUserService(users repository.UserRepository, clock *timezone.LeagueClock, log *zap.Logger) *UserService {
	return &UserService{users: users, clock: clock, log: log}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// SetVacation puts the user on vacation until the given instant. Vacationing
// users are skipped by candidate ranking and cannot be challenged; the daily
// sweep reactivates them once the date passes.
func (s *UserService) SetVacation(ctx context.Context, userID uuid.UUID, until time.Time) (*domain.User, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	end := until.UTC()
	if !end.After(now) {
		return nil, ErrVacationEndInPast
	}

	if err := s.users.UpdateStatus(ctx, userID, domain.UserVacation, &end); err != nil {
		return nil, err
	}
	u.Status = domain.UserVacation
	u.VacationUntil = &end
	u.UpdatedAt = now

	s.log.Info("user on vacation",
		zap.String("user_id", userID.String()),
		zap.Time("until", end))
	return u, nil
}

// SetStatus changes the user's status directly. Setting active or inactive
// clears any vacation end date.
func (s *UserService) SetStatus(ctx context.Context, userID uuid.UUID, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() || status == domain.UserVacation {
		return nil, ErrInvalidStatus
	}

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateStatus(ctx, userID, status, nil); err != nil {
		return nil, err
	}
	u.Status = status
	u.VacationUntil = nil
	u.UpdatedAt = s.clock.Now()
	return u, nil
}

// ReactivateExpiredVacations is the daily sweep returning users whose
// vacation has ended to active.
func (s *UserService) ReactivateExpiredVacations(ctx context.Context) (int64, error) {
	n, err := s.users.ReactivateVacationsEnded(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("reactivated users after vacation", zap.Int64("count", n))
	}
	return n, nil
}
