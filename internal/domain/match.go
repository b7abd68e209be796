package domain

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchDeclined  MatchStatus = "declined"
	MatchExpired   MatchStatus = "expired"
	MatchCanceled  MatchStatus = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s MatchStatus) Terminal() bool {
	switch s {
	case MatchDeclined, MatchExpired, MatchCanceled:
		return true
	}
	return false
}

// CanTransitionTo encodes the lifecycle state machine:
// pending → confirmed | declined | expired | canceled, confirmed → canceled.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	switch s {
	case MatchPending:
		return next == MatchConfirmed || next == MatchDeclined ||
			next == MatchExpired || next == MatchCanceled
	case MatchConfirmed:
		return next == MatchCanceled
	}
	return false
}

const (
	// ChallengeTTL is how long a pending challenge waits for a response.
	ChallengeTTL = 48 * time.Hour
	// AcceptCutoff is the minimum lead time before the match start by
	// which a challenge must be answered.
	AcceptCutoff = 2 * time.Hour
)

type Match struct {
	ID                 uuid.UUID   `json:"id"`
	PlayerAID          uuid.UUID   `json:"player_a_id"`
	PlayerBID          uuid.UUID   `json:"player_b_id"`
	StartTime          time.Time   `json:"start_time"`
	EndTime            time.Time   `json:"end_time"`
	Status             MatchStatus `json:"status"`
	CreatedBy          uuid.UUID   `json:"created_by"`
	CanceledBy         *uuid.UUID  `json:"canceled_by,omitempty"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	ConfirmedAt        *time.Time  `json:"confirmed_at,omitempty"`
	DeclinedAt         *time.Time  `json:"declined_at,omitempty"`
	CanceledAt         *time.Time  `json:"canceled_at,omitempty"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (m *Match) Interval() Interval {
	return Interval{Start: m.StartTime, End: m.EndTime}
}

func (m *Match) Involves(userID uuid.UUID) bool {
	return m.PlayerAID == userID || m.PlayerBID == userID
}

// Opponent returns the other party of the match.
func (m *Match) Opponent(userID uuid.UUID) uuid.UUID {
	if m.PlayerAID == userID {
		return m.PlayerBID
	}
	return m.PlayerAID
}

// ExpiredAt is the single expiration predicate shared by the lazy check on
// accept and the periodic sweep. A pending challenge expires when 48 hours
// have passed since creation, when less than 2 hours remain before the
// match start, or when the start has passed.
func (m *Match) ExpiredAt(now time.Time) bool {
	if m.Status != MatchPending {
		return false
	}
	if !now.Before(m.CreatedAt.Add(ChallengeTTL)) {
		return true
	}
	if !now.Before(m.StartTime.Add(-AcceptCutoff)) {
		return true
	}
	return !now.Before(m.StartTime)
}
