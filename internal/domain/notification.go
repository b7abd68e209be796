package domain

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelBoth  Channel = "both"
)

type Category string

const (
	CategoryChallengeReceived Category = "challenge_received"
	CategoryMatchConfirmed    Category = "match_confirmed"
	CategoryMatchDeclined     Category = "match_declined"
	CategoryMatchCanceled     Category = "match_canceled"
	CategoryReminder24h       Category = "reminder_24h"
	CategoryReminder2h        Category = "reminder_2h"
	CategorySMSDisabled       Category = "sms_disabled"
)

// ReminderCategories are the categories withdrawn when a match is canceled.
var ReminderCategories = []Category{CategoryReminder24h, CategoryReminder2h}

// SMSFailureThreshold is the number of consecutive SMS delivery failures
// after which SMS is auto-disabled for a user.
const SMSFailureThreshold = 3

// Preferences controls when and how a user is notified. Quiet hours are
// league wall-clock minutes since midnight and may wrap midnight.
type Preferences struct {
	UserID                 uuid.UUID  `json:"user_id"`
	EmailEnabled           bool       `json:"email_enabled"`
	SMSOptIn               bool       `json:"sms_opt_in"`
	SMSOptInAt             *time.Time `json:"sms_opt_in_at,omitempty"`
	NotifyRequests         bool       `json:"notify_requests"`
	NotifyResponses        bool       `json:"notify_responses"`
	NotifyReminders        bool       `json:"notify_reminders"`
	NotifyCancellations    bool       `json:"notify_cancellations"`
	QuietHoursEnabled      bool       `json:"quiet_hours_enabled"`
	QuietStart             int        `json:"quiet_start_minute"`
	QuietEnd               int        `json:"quiet_end_minute"`
	SMSConsecutiveFailures int        `json:"-"`
	LastSMSFailureAt       *time.Time `json:"-"`
	LastEmailFailureAt     *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// DefaultPreferences returns the preferences a user starts with: email on,
// SMS off, all categories on, quiet hours 22:00–07:00.
func DefaultPreferences(userID uuid.UUID) *Preferences {
	return &Preferences{
		UserID:              userID,
		EmailEnabled:        true,
		SMSOptIn:            false,
		NotifyRequests:      true,
		NotifyResponses:     true,
		NotifyReminders:     true,
		NotifyCancellations: true,
		QuietHoursEnabled:   true,
		QuietStart:          22 * 60,
		QuietEnd:            7 * 60,
	}
}

// Allows reports whether the user has opted in to the given category.
func (p *Preferences) Allows(cat Category) bool {
	switch cat {
	case CategoryChallengeReceived:
		return p.NotifyRequests
	case CategoryMatchConfirmed, CategoryMatchDeclined:
		return p.NotifyResponses
	case CategoryReminder24h, CategoryReminder2h:
		return p.NotifyReminders
	case CategoryMatchCanceled:
		return p.NotifyCancellations
	}
	return true
}

// EffectiveChannel narrows the requested channel to what the user's
// preferences allow. ok is false when no channel remains.
func (p *Preferences) EffectiveChannel(requested Channel) (Channel, bool) {
	smsOK := p.SMSOptIn
	emailOK := p.EmailEnabled

	switch requested {
	case ChannelSMS:
		if smsOK {
			return ChannelSMS, true
		}
	case ChannelEmail:
		if emailOK {
			return ChannelEmail, true
		}
	case ChannelBoth:
		switch {
		case smsOK && emailOK:
			return ChannelBoth, true
		case smsOK:
			return ChannelSMS, true
		case emailOK:
			return ChannelEmail, true
		}
	}
	return "", false
}

// InQuietHours reports whether the given local wall-clock offset (minutes
// since midnight) falls inside the quiet window. Supports wrap-around
// windows like 22:00–07:00. Comparison is date-independent.
func (p *Preferences) InQuietHours(localMinutes int) bool {
	if !p.QuietHoursEnabled || p.QuietStart == p.QuietEnd {
		return false
	}
	if p.QuietStart < p.QuietEnd {
		return localMinutes >= p.QuietStart && localMinutes < p.QuietEnd
	}
	// wrap: [start..24h) U [0..end)
	return localMinutes >= p.QuietStart || localMinutes < p.QuietEnd
}

// QueuedNotification is one outbound message awaiting delivery by the
// dispatcher sweep. A row is terminal once SentAt or FailedAt is set and is
// never reprocessed.
type QueuedNotification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Category      Category   `json:"category"`
	Priority      Priority   `json:"priority"`
	Channel       Channel    `json:"channel"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"body"`
	MatchID       *uuid.UUID `json:"match_id,omitempty"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	FallbackUsed  bool       `json:"fallback_used"`
	DeliveredVia  *Channel   `json:"delivered_via,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (n *QueuedNotification) Terminal() bool {
	return n.SentAt != nil || n.FailedAt != nil
}
