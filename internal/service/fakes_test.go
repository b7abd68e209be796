package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/repository"
	"github.com/mstanic/courtside/internal/timezone"
)

const testTZ = "America/New_York"

// Wednesday afternoon, league week starting Monday Nov 17.
var testNow = time.Date(2025, time.November, 19, 15, 0, 0, 0, time.UTC)

func newTestClock(t *testing.T, now time.Time) *timezone.LeagueClock {
	t.Helper()
	clock, err := timezone.NewLeagueClockAt(testTZ, now)
	if err != nil {
		t.Fatalf("loading test clock: %v", err)
	}
	return clock
}

func activeUser(name, email string, phone *string) *domain.User {
	return &domain.User{
		ID:          uuid.New(),
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
		Role:        domain.RolePlayer,
		Status:      domain.UserActive,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func testLogger() *zap.Logger { return zap.NewNop() }

// In-memory repository fakes shared by the service tests. They mirror the
// postgres repos' contracts, including the sentinel errors and the
// compare-and-set semantics of match transitions.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ListActive(_ context.Context, exclude uuid.UUID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.ID != exclude && u.Status == domain.UserActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.UserStatus, vacationUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = status
	u.VacationUntil = vacationUntil
	return nil
}

func (r *fakeUserRepo) ReactivateVacationsEnded(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Status == domain.UserVacation && u.VacationUntil != nil && !u.VacationUntil.After(now) {
			u.Status = domain.UserActive
			u.VacationUntil = nil
			n++
		}
	}
	return n, nil
}

type fakePatternRepo struct {
	mu       sync.Mutex
	patterns map[uuid.UUID]*domain.RecurringPattern
}

func newFakePatternRepo() *fakePatternRepo {
	return &fakePatternRepo{patterns: make(map[uuid.UUID]*domain.RecurringPattern)}
}

func (r *fakePatternRepo) Create(_ context.Context, p *domain.RecurringPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.patterns[p.ID] = &cp
	return nil
}

func (r *fakePatternRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.RecurringPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patterns[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePatternRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.RecurringPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecurringPattern
	for _, p := range r.patterns {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePatternRepo) ListEnabled(_ context.Context) ([]domain.RecurringPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecurringPattern
	for _, p := range r.patterns {
		if p.Enabled {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePatternRepo) Update(_ context.Context, p *domain.RecurringPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patterns[p.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	r.patterns[p.ID] = &cp
	return nil
}

func (r *fakePatternRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patterns, id)
	return nil
}

type slotKey struct {
	userID uuid.UUID
	start  time.Time
}

type fakeBlockRepo struct {
	mu     sync.Mutex
	blocks map[uuid.UUID]*domain.AvailabilityBlock
	slots  map[slotKey]uuid.UUID
}

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{
		blocks: make(map[uuid.UUID]*domain.AvailabilityBlock),
		slots:  make(map[slotKey]uuid.UUID),
	}
}

func (r *fakeBlockRepo) Insert(_ context.Context, b *domain.AvailabilityBlock) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := slotKey{userID: b.UserID, start: b.StartTime}
	if _, taken := r.slots[key]; taken {
		return false, nil
	}
	cp := *b
	r.blocks[b.ID] = &cp
	r.slots[key] = b.ID
	return true, nil
}

func (r *fakeBlockRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBlockRepo) ListByUserRange(_ context.Context, userID uuid.UUID, from, to time.Time) ([]domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AvailabilityBlock
	for _, b := range r.blocks {
		if b.UserID == userID && b.StartTime.Before(to) && b.EndTime.After(from) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *fakeBlockRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.slots, slotKey{userID: b.UserID, start: b.StartTime})
	delete(r.blocks, id)
	return nil
}

func (r *fakeBlockRepo) DeleteFutureByPattern(_ context.Context, patternID uuid.UUID, after time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, b := range r.blocks {
		if b.PatternID != nil && *b.PatternID == patternID && b.StartTime.After(after) {
			delete(r.slots, slotKey{userID: b.UserID, start: b.StartTime})
			delete(r.blocks, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeBlockRepo) DeleteEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, b := range r.blocks {
		if b.EndTime.Before(cutoff) {
			delete(r.slots, slotKey{userID: b.UserID, start: b.StartTime})
			delete(r.blocks, id)
			n++
		}
	}
	return n, nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*domain.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[uuid.UUID]*domain.Match)}
}

func (r *fakeMatchRepo) hasConflictLocked(iv domain.Interval, userID uuid.UUID, exclude uuid.UUID) bool {
	for _, m := range r.matches {
		if m.ID == exclude {
			continue
		}
		if m.Status != domain.MatchPending && m.Status != domain.MatchConfirmed {
			continue
		}
		if m.Involves(userID) && m.Interval().Overlaps(iv) {
			return true
		}
	}
	return false
}

func (r *fakeMatchRepo) CreateChallenge(_ context.Context, m *domain.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv := m.Interval()
	if r.hasConflictLocked(iv, m.PlayerAID, uuid.Nil) || r.hasConflictLocked(iv, m.PlayerBID, uuid.Nil) {
		return repository.ErrConflict
	}
	cp := *m
	r.matches[m.ID] = &cp
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) ListByUser(_ context.Context, userID uuid.UUID, status *domain.MatchStatus, upcoming *bool, limit int) ([]domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Match
	for _, m := range r.matches {
		if !m.Involves(userID) {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, *m)
		if len(out) == limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *fakeMatchRepo) ListActiveInRange(_ context.Context, userIDs []uuid.UUID, from, to time.Time) ([]domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv := domain.Interval{Start: from, End: to}
	var out []domain.Match
	for _, m := range r.matches {
		if m.Status != domain.MatchPending && m.Status != domain.MatchConfirmed {
			continue
		}
		if !m.Interval().Overlaps(iv) {
			continue
		}
		for _, id := range userIDs {
			if m.Involves(id) {
				out = append(out, *m)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) Confirm(_ context.Context, id uuid.UUID, playerB uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repository.ErrNotFound
	}
	if m.Status != domain.MatchPending {
		return repository.ErrStaleStatus
	}
	if r.hasConflictLocked(m.Interval(), playerB, id) {
		return repository.ErrConflict
	}
	m.Status = domain.MatchConfirmed
	m.ConfirmedAt = &at
	m.UpdatedAt = at
	return nil
}

func (r *fakeMatchRepo) transition(id uuid.UUID, from, to domain.MatchStatus, at time.Time) (*domain.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.Status != from {
		return nil, repository.ErrStaleStatus
	}
	m.Status = to
	m.UpdatedAt = at
	return m, nil
}

func (r *fakeMatchRepo) Decline(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.transition(id, domain.MatchPending, domain.MatchDeclined, at)
	if err != nil {
		return err
	}
	m.DeclinedAt = &at
	return nil
}

func (r *fakeMatchRepo) Expire(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.transition(id, domain.MatchPending, domain.MatchExpired, at)
	return err
}

func (r *fakeMatchRepo) Cancel(_ context.Context, id uuid.UUID, from domain.MatchStatus, by uuid.UUID, reason *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.transition(id, from, domain.MatchCanceled, at)
	if err != nil {
		return err
	}
	m.CanceledBy = &by
	m.CancellationReason = reason
	m.CanceledAt = &at
	return nil
}

func (r *fakeMatchRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]domain.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Match
	for _, m := range r.matches {
		if m.ExpiredAt(now) {
			out = append(out, *m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	prefs map[uuid.UUID]*domain.Preferences
	queue map[uuid.UUID]*domain.QueuedNotification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		prefs: make(map[uuid.UUID]*domain.Preferences),
		queue: make(map[uuid.UUID]*domain.QueuedNotification),
	}
}

func (r *fakeNotificationRepo) GetPreferences(_ context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prefs[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeNotificationRepo) SavePreferences(_ context.Context, p *domain.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.prefs[p.UserID] = &cp
	return nil
}

func (r *fakeNotificationRepo) Enqueue(_ context.Context, n *domain.QueuedNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.queue[n.ID] = &cp
	return nil
}

func (r *fakeNotificationRepo) ListDue(_ context.Context, now time.Time, limit int) ([]domain.QueuedNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueuedNotification
	for _, n := range r.queue {
		if !n.Terminal() && !n.ScheduledFor.After(now) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time, via domain.Channel, fallbackUsed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.queue[id]
	if !ok || n.Terminal() {
		return repository.ErrNotFound
	}
	n.SentAt = &at
	n.DeliveredVia = &via
	n.FallbackUsed = fallbackUsed
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.queue[id]
	if !ok || n.Terminal() {
		return repository.ErrNotFound
	}
	n.FailedAt = &at
	n.FailureReason = &reason
	return nil
}

func (r *fakeNotificationRepo) DeletePendingForMatch(_ context.Context, matchID uuid.UUID, categories []domain.Category) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, q := range r.queue {
		if q.Terminal() || q.MatchID == nil || *q.MatchID != matchID {
			continue
		}
		for _, cat := range categories {
			if q.Category == cat {
				delete(r.queue, id)
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, q := range r.queue {
		if !q.Terminal() {
			continue
		}
		at := q.SentAt
		if at == nil {
			at = q.FailedAt
		}
		if at.Before(cutoff) {
			delete(r.queue, id)
			n++
		}
	}
	return n, nil
}

// byCategory returns queued rows of one category for a user.
func (r *fakeNotificationRepo) byCategory(userID uuid.UUID, cat domain.Category) []domain.QueuedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueuedNotification
	for _, n := range r.queue {
		if n.UserID == userID && n.Category == cat {
			out = append(out, *n)
		}
	}
	return out
}

type fakeSMS struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (g *fakeSMS) SendSMS(to, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, to+": "+body)
	return nil
}

type fakeEmail struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (g *fakeEmail) SendEmail(to, subject, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, to+": "+subject)
	return nil
}

var errSMSDown = errors.New("carrier rejected message")
