package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/repository"
	"github.com/mstanic/courtside/internal/timezone"
)

var (
	ErrSelfChallenge    = errors.New("cannot challenge yourself")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerNotActive  = errors.New("player is not active")
	ErrStartInPast      = errors.New("match start must be in the future")
	ErrInvalidMatchTime = errors.New("match end must be after start")
	ErrMatchNotFound    = errors.New("match not found")
	ErrNotParticipant   = errors.New("not a participant of this match")
	ErrNotRespondent    = errors.New("only the challenged player can respond")
	ErrNotInitiator     = errors.New("only the challenger can cancel a pending match")
	ErrMatchConflict    = errors.New("conflicting match already scheduled")
	ErrChallengeExpired = errors.New("challenge has expired")
	ErrWrongStatus      = errors.New("match is not in a state that allows this action")
	ErrMatchStarted     = errors.New("match has already started")
	ErrStaleState       = errors.New("match was modified concurrently, reload and retry")
)

type MatchService struct {
	matches       repository.MatchRepository
	users         repository.UserRepository
	notifications *NotificationService
	clock         *timezone.LeagueClock
	log           *zap.Logger
}

func NewMatchService(
	matches repository.MatchRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	clock *timezone.LeagueClock,
	log *zap.Logger,
) *MatchService {
	return &MatchService{
		matches:       matches,
		users:         users,
		notifications: notifications,
		clock:         clock,
		log:           log,
	}
}

type CreateChallengeInput struct {
	OpponentID uuid.UUID `json:"opponent_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// Create issues a challenge from challenger to the opponent. Both players
// must be active and free of overlapping pending or confirmed matches; the
// conflict check runs inside the repository transaction so two simultaneous
// challenges for the same slot cannot both land.
func (s *MatchService) Create(ctx context.Context, challengerID uuid.UUID, in CreateChallengeInput) (*domain.Match, error) {
	if in.OpponentID == challengerID {
		return nil, ErrSelfChallenge
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, ErrInvalidMatchTime
	}

	now := s.clock.Now()
	if !in.StartTime.After(now) {
		return nil, ErrStartInPast
	}

	challenger, err := s.users.GetByID(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	if challenger == nil {
		return nil, ErrPlayerNotFound
	}
	if challenger.Status != domain.UserActive {
		return nil, ErrPlayerNotActive
	}

	opponent, err := s.users.GetByID(ctx, in.OpponentID)
	if err != nil {
		return nil, err
	}
	if opponent == nil {
		return nil, ErrPlayerNotFound
	}
	if opponent.Status != domain.UserActive {
		return nil, ErrPlayerNotActive
	}

	m := &domain.Match{
		ID:        uuid.New(),
		PlayerAID: challengerID,
		PlayerBID: in.OpponentID,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		Status:    domain.MatchPending,
		CreatedBy: challengerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.matches.CreateChallenge(ctx, m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrMatchConflict
		}
		return nil, err
	}

	s.notify(ctx, opponent.ID, EnqueueInput{
		Category: domain.CategoryChallengeReceived,
		Priority: domain.PriorityHigh,
		Channel:  domain.ChannelBoth,
		Subject:  "New Match Challenge",
		Body: fmt.Sprintf("%s challenged you to a match on %s. You have 48 hours to respond.",
			challenger.Name, s.formatLocal(m.StartTime)),
		MatchID: &m.ID,
	})

	s.log.Info("challenge created",
		zap.String("match_id", m.ID.String()),
		zap.String("challenger", challengerID.String()),
		zap.String("opponent", in.OpponentID.String()))
	return m, nil
}

// Accept confirms a pending challenge. Only the challenged player may
// accept. An expired challenge is marked expired on the spot rather than
// waiting for the sweep.
func (s *MatchService) Accept(ctx context.Context, matchID, userID uuid.UUID) (*domain.Match, error) {
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, ErrNotParticipant
	}
	if m.PlayerBID != userID {
		return nil, ErrNotRespondent
	}
	if m.Status != domain.MatchPending {
		return nil, ErrWrongStatus
	}

	now := s.clock.Now()
	if m.ExpiredAt(now) {
		if err := s.matches.Expire(ctx, m.ID, now); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return nil, err
		}
		return nil, ErrChallengeExpired
	}

	if err := s.matches.Confirm(ctx, m.ID, userID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrMatchConflict
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, ErrStaleState
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	m.Status = domain.MatchConfirmed
	m.ConfirmedAt = &now
	m.UpdatedAt = now

	s.sendConfirmationAndReminders(ctx, m)

	s.log.Info("challenge accepted",
		zap.String("match_id", m.ID.String()),
		zap.String("player", userID.String()))
	return m, nil
}

// Decline rejects a pending challenge. Only the challenged player may
// decline.
func (s *MatchService) Decline(ctx context.Context, matchID, userID uuid.UUID) (*domain.Match, error) {
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, ErrNotParticipant
	}
	if m.PlayerBID != userID {
		return nil, ErrNotRespondent
	}
	if m.Status != domain.MatchPending {
		return nil, ErrWrongStatus
	}

	now := s.clock.Now()
	if err := s.matches.Decline(ctx, m.ID, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrStaleState
		}
		return nil, err
	}

	m.Status = domain.MatchDeclined
	m.DeclinedAt = &now
	m.UpdatedAt = now

	decliner, _ := s.users.GetByID(ctx, userID)
	name := "Your opponent"
	if decliner != nil {
		name = decliner.Name
	}
	s.notify(ctx, m.PlayerAID, EnqueueInput{
		Category: domain.CategoryMatchDeclined,
		Priority: domain.PriorityNormal,
		Channel:  domain.ChannelEmail,
		Subject:  "Challenge Declined",
		Body: fmt.Sprintf("%s declined your challenge for %s.",
			name, s.formatLocal(m.StartTime)),
		MatchID: &m.ID,
	})

	return m, nil
}

type CancelInput struct {
	Reason *string `json:"reason,omitempty"`
}

// Cancel withdraws a pending challenge or cancels a confirmed match. A
// pending challenge can only be withdrawn by whoever issued it; a confirmed
// match can be canceled by either player, up until its start time.
// Cancellation withdraws any queued reminders and notifies the other
// player.
func (s *MatchService) Cancel(ctx context.Context, matchID, userID uuid.UUID, in CancelInput) (*domain.Match, error) {
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, ErrNotParticipant
	}

	switch m.Status {
	case domain.MatchPending:
		if m.PlayerAID != userID {
			return nil, ErrNotInitiator
		}
	case domain.MatchConfirmed:
	default:
		return nil, ErrWrongStatus
	}

	now := s.clock.Now()
	if !now.Before(m.StartTime) {
		return nil, ErrMatchStarted
	}

	from := m.Status
	if err := s.matches.Cancel(ctx, m.ID, from, userID, in.Reason, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrStaleState
		}
		return nil, err
	}

	m.Status = domain.MatchCanceled
	m.CanceledBy = &userID
	m.CancellationReason = in.Reason
	m.CanceledAt = &now
	m.UpdatedAt = now

	if err := s.notifications.WithdrawMatchReminders(ctx, m.ID); err != nil {
		s.log.Error("withdrawing reminders", zap.String("match_id", m.ID.String()), zap.Error(err))
	}

	canceler, _ := s.users.GetByID(ctx, userID)
	name := "Your opponent"
	if canceler != nil {
		name = canceler.Name
	}
	body := fmt.Sprintf("%s canceled your match scheduled for %s.", name, s.formatLocal(m.StartTime))
	if in.Reason != nil && *in.Reason != "" {
		body += " Reason: " + *in.Reason
	}
	s.notify(ctx, m.Opponent(userID), EnqueueInput{
		Category: domain.CategoryMatchCanceled,
		Priority: domain.PriorityHigh,
		Channel:  domain.ChannelBoth,
		Subject:  "Match Canceled",
		Body:     body,
		MatchID:  &m.ID,
	})

	s.log.Info("match canceled",
		zap.String("match_id", m.ID.String()),
		zap.String("by", userID.String()),
		zap.String("was", string(from)))
	return m, nil
}

// ExpireDue is the periodic sweep over stale pending challenges. Each row is
// re-checked against the expiration predicate and transitioned
// independently; a row that a concurrent accept already confirmed is simply
// skipped.
func (s *MatchService) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.matches.ListExpirable(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		m := &due[i]
		if !m.ExpiredAt(now) {
			continue
		}
		if err := s.matches.Expire(ctx, m.ID, now); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				continue
			}
			s.log.Error("expiring match", zap.String("match_id", m.ID.String()), zap.Error(err))
			continue
		}
		expired++

		s.notify(ctx, m.PlayerAID, EnqueueInput{
			Category: domain.CategoryMatchDeclined,
			Priority: domain.PriorityNormal,
			Channel:  domain.ChannelEmail,
			Subject:  "Challenge Expired",
			Body: fmt.Sprintf("Your challenge for %s expired without a response.",
				s.formatLocal(m.StartTime)),
			MatchID: &m.ID,
		})
	}

	if expired > 0 {
		s.log.Info("expired stale challenges", zap.Int("count", expired))
	}
	return expired, nil
}

type ListMatchesInput struct {
	Status   *domain.MatchStatus
	Upcoming *bool
	Limit    int
}

func (s *MatchService) ListUserMatches(ctx context.Context, userID uuid.UUID, in ListMatchesInput) ([]domain.Match, error) {
	if in.Status != nil {
		switch *in.Status {
		case domain.MatchPending, domain.MatchConfirmed, domain.MatchDeclined,
			domain.MatchExpired, domain.MatchCanceled:
		default:
			return nil, ErrWrongStatus
		}
	}
	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.matches.ListByUser(ctx, userID, in.Status, in.Upcoming, limit)
}

// GetMatch returns the match, visible only to its participants.
func (s *MatchService) GetMatch(ctx context.Context, matchID, userID uuid.UUID) (*domain.Match, error) {
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, ErrNotParticipant
	}
	return m, nil
}

func (s *MatchService) getMatch(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	m, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// sendConfirmationAndReminders queues the confirmation for both players plus
// the 24-hour and 2-hour reminders. Reminders landing in the past for a
// near-term match are skipped.
func (s *MatchService) sendConfirmationAndReminders(ctx context.Context, m *domain.Match) {
	when := s.formatLocal(m.StartTime)
	now := s.clock.Now()

	for _, playerID := range []uuid.UUID{m.PlayerAID, m.PlayerBID} {
		s.notify(ctx, playerID, EnqueueInput{
			Category: domain.CategoryMatchConfirmed,
			Priority: domain.PriorityHigh,
			Channel:  domain.ChannelBoth,
			Subject:  "Match Confirmed",
			Body:     fmt.Sprintf("Your match on %s is confirmed.", when),
			MatchID:  &m.ID,
		})

		if at := m.StartTime.Add(-24 * time.Hour); at.After(now) {
			s.notify(ctx, playerID, EnqueueInput{
				Category:     domain.CategoryReminder24h,
				Priority:     domain.PriorityHigh,
				Channel:      domain.ChannelBoth,
				Subject:      "Match Tomorrow",
				Body:         fmt.Sprintf("Reminder: your match is tomorrow, %s.", when),
				MatchID:      &m.ID,
				ScheduledFor: &at,
			})
		}
		if at := m.StartTime.Add(-2 * time.Hour); at.After(now) {
			s.notify(ctx, playerID, EnqueueInput{
				Category:     domain.CategoryReminder2h,
				Priority:     domain.PriorityCritical,
				Channel:      domain.ChannelBoth,
				Subject:      "Match Starting Soon",
				Body:         fmt.Sprintf("Reminder: your match starts at %s.", when),
				MatchID:      &m.ID,
				ScheduledFor: &at,
			})
		}
	}
}

// notify queues a notification, logging failures instead of propagating
// them. A broken notification pipeline must not fail the lifecycle action.
func (s *MatchService) notify(ctx context.Context, userID uuid.UUID, input EnqueueInput) {
	input.UserID = userID
	if err := s.notifications.Enqueue(ctx, input); err != nil {
		s.log.Error("enqueueing notification",
			zap.String("user_id", userID.String()),
			zap.String("category", string(input.Category)),
			zap.Error(err))
	}
}

func (s *MatchService) formatLocal(t time.Time) string {
	return s.clock.UTCToLocal(t).Format("Monday, Jan 2 at 3:04 PM")
}
