package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/gateway"
	"github.com/mstanic/courtside/internal/repository"
	"github.com/mstanic/courtside/internal/timezone"
)

var ErrInvalidQuietHours = errors.New("quiet hours must be within a single day")

// permanent email failures, matched by substring against the provider error
var hardBounceIndicators = []string{"invalid", "not exist", "bounced", "rejected"}

type NotificationService struct {
	repo  repository.NotificationRepository
	users repository.UserRepository
	sms   gateway.SMSSender
	email gateway.EmailSender
	clock *timezone.LeagueClock
	log   *zap.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	sms gateway.SMSSender,
	email gateway.EmailSender,
	clock *timezone.LeagueClock,
	log *zap.Logger,
) *NotificationService {
	return &NotificationService{
		repo:  repo,
		users: users,
		sms:   sms,
		email: email,
		clock: clock,
		log:   log,
	}
}

// GetPreferences returns the user's preferences, creating the defaults on
// first access.
func (s *NotificationService) GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = domain.DefaultPreferences(userID)
		if err := s.repo.SavePreferences(ctx, prefs); err != nil {
			return nil, fmt.Errorf("creating default preferences: %w", err)
		}
	}
	return prefs, nil
}

type PreferencesInput struct {
	EmailEnabled        bool `json:"email_enabled"`
	SMSOptIn            bool `json:"sms_opt_in"`
	NotifyRequests      bool `json:"notify_requests"`
	NotifyResponses     bool `json:"notify_responses"`
	NotifyReminders     bool `json:"notify_reminders"`
	NotifyCancellations bool `json:"notify_cancellations"`
	QuietHoursEnabled   bool `json:"quiet_hours_enabled"`
	QuietStart          int  `json:"quiet_start_minute"`
	QuietEnd            int  `json:"quiet_end_minute"`
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uuid.UUID, in PreferencesInput) (*domain.Preferences, error) {
	if in.QuietStart < 0 || in.QuietStart >= 24*60 || in.QuietEnd < 0 || in.QuietEnd >= 24*60 {
		return nil, ErrInvalidQuietHours
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.SMSOptIn && !prefs.SMSOptIn {
		now := s.clock.Now()
		prefs.SMSOptInAt = &now
		// a fresh opt-in clears the failure streak
		prefs.SMSConsecutiveFailures = 0
	}
	prefs.EmailEnabled = in.EmailEnabled
	prefs.SMSOptIn = in.SMSOptIn
	prefs.NotifyRequests = in.NotifyRequests
	prefs.NotifyResponses = in.NotifyResponses
	prefs.NotifyReminders = in.NotifyReminders
	prefs.NotifyCancellations = in.NotifyCancellations
	prefs.QuietHoursEnabled = in.QuietHoursEnabled
	prefs.QuietStart = in.QuietStart
	prefs.QuietEnd = in.QuietEnd

	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

type EnqueueInput struct {
	UserID       uuid.UUID
	Category     domain.Category
	Priority     domain.Priority
	Channel      domain.Channel
	Subject      string
	Body         string
	MatchID      *uuid.UUID
	ScheduledFor *time.Time
}

// Enqueue persists a notification for later delivery. The requested channel
// is narrowed to what the user allows; when nothing remains, or the user has
// opted out of the category, the call is a silent no-op. Non-critical
// notifications landing in quiet hours are deferred to just after the
// window.
func (s *NotificationService) Enqueue(ctx context.Context, in EnqueueInput) error {
	prefs, err := s.GetPreferences(ctx, in.UserID)
	if err != nil {
		return err
	}

	if !prefs.Allows(in.Category) {
		s.log.Debug("notification suppressed by category opt-out",
			zap.String("user_id", in.UserID.String()),
			zap.String("category", string(in.Category)))
		return nil
	}

	channel, ok := prefs.EffectiveChannel(in.Channel)
	if !ok {
		s.log.Debug("no deliverable channel, dropping notification",
			zap.String("user_id", in.UserID.String()),
			zap.String("category", string(in.Category)))
		return nil
	}

	scheduledFor := s.clock.Now()
	if in.ScheduledFor != nil {
		scheduledFor = *in.ScheduledFor
	}
	if in.Priority != domain.PriorityCritical {
		scheduledFor = s.deferForQuietHours(prefs, scheduledFor)
	}

	n := &domain.QueuedNotification{
		ID:           uuid.New(),
		UserID:       in.UserID,
		Category:     in.Category,
		Priority:     in.Priority,
		Channel:      channel,
		Subject:      in.Subject,
		Body:         in.Body,
		MatchID:      in.MatchID,
		ScheduledFor: scheduledFor,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Enqueue(ctx, n); err != nil {
		return fmt.Errorf("enqueueing notification: %w", err)
	}
	return nil
}

// deferForQuietHours shifts a delivery time that falls inside the user's
// quiet window to the next quiet-hours end. Comparison is on league
// wall-clock time only.
func (s *NotificationService) deferForQuietHours(prefs *domain.Preferences, at time.Time) time.Time {
	local := s.clock.UTCToLocal(at)
	if !prefs.InQuietHours(local.Hour()*60 + local.Minute()) {
		return at
	}

	end := time.Date(local.Year(), local.Month(), local.Day(),
		prefs.QuietEnd/60, prefs.QuietEnd%60, 0, 0, local.Location())
	if !end.After(local) {
		end = end.AddDate(0, 0, 1)
	}
	return end.UTC()
}

// WithdrawMatchReminders deletes unsent reminders attached to a match,
// called when the match is canceled.
func (s *NotificationService) WithdrawMatchReminders(ctx context.Context, matchID uuid.UUID) error {
	deleted, err := s.repo.DeletePendingForMatch(ctx, matchID, domain.ReminderCategories)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info("withdrew match reminders",
			zap.String("match_id", matchID.String()),
			zap.Int64("count", deleted))
	}
	return nil
}

// ProcessDue is the periodic dispatch sweep. Each due row is handled
// independently: a delivery failure is recorded on the row and never aborts
// the batch. Rows are terminal after one pass.
func (s *NotificationService) ProcessDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	for i := range due {
		if err := s.deliver(ctx, now, &due[i]); err != nil {
			s.log.Error("notification processing",
				zap.String("notification_id", due[i].ID.String()),
				zap.Error(err))
		}
	}
	return len(due), nil
}

func (s *NotificationService) deliver(ctx context.Context, now time.Time, n *domain.QueuedNotification) error {
	user, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return s.repo.MarkFailed(ctx, n.ID, now, "user not found")
	}

	prefs, err := s.GetPreferences(ctx, n.UserID)
	if err != nil {
		return err
	}

	var (
		sent         bool
		via          domain.Channel
		attemptedSMS bool
		smsErr       error
		emailErr     error
	)

	if (n.Channel == domain.ChannelSMS || n.Channel == domain.ChannelBoth) &&
		prefs.SMSOptIn && user.PhoneNumber != nil {
		attemptedSMS = true
		if smsErr = s.sms.SendSMS(*user.PhoneNumber, n.Body); smsErr == nil {
			sent = true
			via = domain.ChannelSMS
		}
	}

	// email path, doubling as the fallback after a failed SMS when the
	// requested channel was "both"
	if !sent && (n.Channel == domain.ChannelEmail || n.Channel == domain.ChannelBoth) &&
		prefs.EmailEnabled {
		subject := n.Subject
		if subject == "" {
			subject = "Courtside League Notification"
		}
		if emailErr = s.email.SendEmail(user.Email, subject, n.Body); emailErr == nil {
			sent = true
			via = domain.ChannelEmail
		}
	}

	if sent {
		fallbackUsed := attemptedSMS && via == domain.ChannelEmail
		if err := s.repo.MarkSent(ctx, n.ID, now, via, fallbackUsed); err != nil {
			return err
		}
	} else {
		if err := s.repo.MarkFailed(ctx, n.ID, now, deliveryFailureReason(smsErr, emailErr)); err != nil {
			return err
		}
	}

	if attemptedSMS {
		if smsErr != nil {
			if err := s.handleSMSFailure(ctx, prefs, smsErr); err != nil {
				return err
			}
		} else if prefs.SMSConsecutiveFailures > 0 {
			prefs.SMSConsecutiveFailures = 0
			if err := s.repo.SavePreferences(ctx, prefs); err != nil {
				return err
			}
		}
	}
	if emailErr != nil {
		if err := s.handleEmailFailure(ctx, prefs, emailErr); err != nil {
			return err
		}
	}
	return nil
}

func deliveryFailureReason(smsErr, emailErr error) string {
	switch {
	case smsErr != nil && emailErr != nil:
		return fmt.Sprintf("sms: %v, email: %v", smsErr, emailErr)
	case smsErr != nil:
		return fmt.Sprintf("sms: %v", smsErr)
	case emailErr != nil:
		return fmt.Sprintf("email: %v", emailErr)
	}
	return "no deliverable channel"
}

// handleSMSFailure advances the consecutive-failure counter and, at the
// threshold, disables SMS for the user and queues a single email notice.
// The notice fires only on the opt-in flip, so re-running a pass cannot
// queue it twice.
func (s *NotificationService) handleSMSFailure(ctx context.Context, prefs *domain.Preferences, cause error) error {
	now := s.clock.Now()
	prefs.SMSConsecutiveFailures++
	prefs.LastSMSFailureAt = &now

	if prefs.SMSConsecutiveFailures >= domain.SMSFailureThreshold && prefs.SMSOptIn {
		prefs.SMSOptIn = false
		if err := s.repo.SavePreferences(ctx, prefs); err != nil {
			return err
		}
		s.log.Warn("disabled sms after repeated delivery failures",
			zap.String("user_id", prefs.UserID.String()),
			zap.Int("failures", prefs.SMSConsecutiveFailures))

		return s.Enqueue(ctx, EnqueueInput{
			UserID:   prefs.UserID,
			Category: domain.CategorySMSDisabled,
			Priority: domain.PriorityCritical,
			Channel:  domain.ChannelEmail,
			Subject:  "SMS Notifications Disabled",
			Body: fmt.Sprintf("SMS notifications have been disabled after repeated delivery failures (%v). "+
				"Please update your phone number if it has changed.", cause),
		})
	}

	return s.repo.SavePreferences(ctx, prefs)
}

// handleEmailFailure disables email on permanent bounces.
func (s *NotificationService) handleEmailFailure(ctx context.Context, prefs *domain.Preferences, cause error) error {
	now := s.clock.Now()
	prefs.LastEmailFailureAt = &now

	msg := strings.ToLower(cause.Error())
	for _, indicator := range hardBounceIndicators {
		if strings.Contains(msg, indicator) {
			prefs.EmailEnabled = false
			s.log.Warn("disabled email after permanent bounce",
				zap.String("user_id", prefs.UserID.String()),
				zap.String("cause", cause.Error()))
			break
		}
	}

	return s.repo.SavePreferences(ctx, prefs)
}

// CleanupTerminal removes sent/failed rows older than the retention window.
func (s *NotificationService) CleanupTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteTerminalOlderThan(ctx, s.clock.Now().Add(-retention))
}
