package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mstanic/courtside/internal/domain"
)

type matchEnv struct {
	svc     *MatchService
	users   *fakeUserRepo
	matches *fakeMatchRepo
	queue   *fakeNotificationRepo
	a, b    *domain.User
}

func newMatchEnv(t *testing.T) *matchEnv {
	t.Helper()
	users := newFakeUserRepo()
	matches := newFakeMatchRepo()
	queue := newFakeNotificationRepo()
	clock := newTestClock(t, testNow)
	notifications := NewNotificationService(queue, users, &fakeSMS{}, &fakeEmail{}, clock, testLogger())
	svc := NewMatchService(matches, users, notifications, clock, testLogger())

	a := activeUser("Alice", "alice@example.com", nil)
	b := activeUser("Bob", "bob@example.com", nil)
	for _, u := range []*domain.User{a, b} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seeding user: %v", err)
		}
	}
	return &matchEnv{svc: svc, users: users, matches: matches, queue: queue, a: a, b: b}
}

func (e *matchEnv) challenge(t *testing.T, start time.Time) *domain.Match {
	t.Helper()
	m, err := e.svc.Create(context.Background(), e.a.ID, CreateChallengeInput{
		OpponentID: e.b.ID,
		StartTime:  start,
		EndTime:    start.Add(domain.BlockGranularity),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func TestCreateChallenge(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)

	m := env.challenge(t, start)
	if m.Status != domain.MatchPending {
		t.Errorf("status = %s, want pending", m.Status)
	}
	if m.CreatedBy != env.a.ID {
		t.Errorf("created_by = %s, want challenger", m.CreatedBy)
	}

	queued := env.queue.byCategory(env.b.ID, domain.CategoryChallengeReceived)
	if len(queued) != 1 {
		t.Fatalf("opponent has %d challenge notifications, want 1", len(queued))
	}
	if queued[0].Priority != domain.PriorityHigh {
		t.Errorf("challenge notification priority = %s, want high", queued[0].Priority)
	}
}

func TestCreateChallengeRejections(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)

	vacationer := activeUser("Vera", "vera@example.com", nil)
	vacationer.Status = domain.UserVacation
	if err := env.users.Create(context.Background(), vacationer); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	cases := []struct {
		name       string
		challenger uuid.UUID
		in         CreateChallengeInput
		want       error
	}{
		{"self challenge", env.a.ID,
			CreateChallengeInput{OpponentID: env.a.ID, StartTime: start, EndTime: start.Add(time.Hour)},
			ErrSelfChallenge},
		{"start in past", env.a.ID,
			CreateChallengeInput{OpponentID: env.b.ID, StartTime: testNow.Add(-time.Hour), EndTime: testNow},
			ErrStartInPast},
		{"end before start", env.a.ID,
			CreateChallengeInput{OpponentID: env.b.ID, StartTime: start, EndTime: start.Add(-time.Hour)},
			ErrInvalidMatchTime},
		{"unknown opponent", env.a.ID,
			CreateChallengeInput{OpponentID: uuid.New(), StartTime: start, EndTime: start.Add(time.Hour)},
			ErrPlayerNotFound},
		{"vacationing opponent", env.a.ID,
			CreateChallengeInput{OpponentID: vacationer.ID, StartTime: start, EndTime: start.Add(time.Hour)},
			ErrPlayerNotActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Create(context.Background(), tc.challenger, tc.in); err != tc.want {
				t.Errorf("Create = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateChallengeConflict(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)

	env.challenge(t, start)

	// Same slot again while the first challenge is still pending.
	_, err := env.svc.Create(context.Background(), env.a.ID, CreateChallengeInput{
		OpponentID: env.b.ID,
		StartTime:  start.Add(15 * time.Minute),
		EndTime:    start.Add(45 * time.Minute),
	})
	if err != ErrMatchConflict {
		t.Errorf("overlapping challenge = %v, want ErrMatchConflict", err)
	}
}

func TestAcceptConfirmsAndQueuesReminders(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)
	m := env.challenge(t, start)

	got, err := env.svc.Accept(context.Background(), m.ID, env.b.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Status != domain.MatchConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	if got.ConfirmedAt == nil {
		t.Error("ConfirmedAt not set")
	}

	for _, playerID := range []uuid.UUID{env.a.ID, env.b.ID} {
		if n := env.queue.byCategory(playerID, domain.CategoryMatchConfirmed); len(n) != 1 {
			t.Errorf("player %s has %d confirmations, want 1", playerID, len(n))
		}
		day := env.queue.byCategory(playerID, domain.CategoryReminder24h)
		if len(day) != 1 {
			t.Fatalf("player %s has %d 24h reminders, want 1", playerID, len(day))
		}
		if !day[0].ScheduledFor.Equal(start.Add(-24 * time.Hour)) {
			t.Errorf("24h reminder scheduled %v, want %v", day[0].ScheduledFor, start.Add(-24*time.Hour))
		}
		hour := env.queue.byCategory(playerID, domain.CategoryReminder2h)
		if len(hour) != 1 {
			t.Fatalf("player %s has %d 2h reminders, want 1", playerID, len(hour))
		}
		if hour[0].Priority != domain.PriorityCritical {
			t.Errorf("2h reminder priority = %s, want critical", hour[0].Priority)
		}
	}
}

func TestAcceptAuthorization(t *testing.T) {
	env := newMatchEnv(t)
	m := env.challenge(t, testNow.Add(72*time.Hour))

	if _, err := env.svc.Accept(context.Background(), m.ID, env.a.ID); err != ErrNotRespondent {
		t.Errorf("Accept by challenger = %v, want ErrNotRespondent", err)
	}
	if _, err := env.svc.Accept(context.Background(), m.ID, uuid.New()); err != ErrNotParticipant {
		t.Errorf("Accept by stranger = %v, want ErrNotParticipant", err)
	}
}

func TestAcceptExpiredChallenge(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)
	m := env.challenge(t, start)

	// Backdate creation past the response window.
	env.matches.mu.Lock()
	env.matches.matches[m.ID].CreatedAt = testNow.Add(-49 * time.Hour)
	env.matches.mu.Unlock()

	if _, err := env.svc.Accept(context.Background(), m.ID, env.b.ID); err != ErrChallengeExpired {
		t.Fatalf("Accept = %v, want ErrChallengeExpired", err)
	}

	got, _ := env.matches.GetByID(context.Background(), m.ID)
	if got.Status != domain.MatchExpired {
		t.Errorf("status after lazy expiry = %s, want expired", got.Status)
	}
}

func TestAcceptTooCloseToStart(t *testing.T) {
	env := newMatchEnv(t)
	m := env.challenge(t, testNow.Add(3*time.Hour))

	// Move the start inside the cutoff window.
	env.matches.mu.Lock()
	env.matches.matches[m.ID].StartTime = testNow.Add(90 * time.Minute)
	env.matches.mu.Unlock()

	if _, err := env.svc.Accept(context.Background(), m.ID, env.b.ID); err != ErrChallengeExpired {
		t.Errorf("Accept inside cutoff = %v, want ErrChallengeExpired", err)
	}
}

func TestAcceptAfterNewConflict(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)
	m := env.challenge(t, start)

	// Bob confirms a different match in the same slot before responding.
	c := activeUser("Carol", "carol@example.com", nil)
	if err := env.users.Create(context.Background(), c); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	other := &domain.Match{
		ID:        uuid.New(),
		PlayerAID: c.ID,
		PlayerBID: env.b.ID,
		StartTime: start.Add(-time.Hour),
		EndTime:   start.Add(15 * time.Minute),
		Status:    domain.MatchConfirmed,
		CreatedAt: testNow,
	}
	env.matches.mu.Lock()
	env.matches.matches[other.ID] = other
	env.matches.mu.Unlock()

	if _, err := env.svc.Accept(context.Background(), m.ID, env.b.ID); err != ErrMatchConflict {
		t.Fatalf("Accept with conflict = %v, want ErrMatchConflict", err)
	}

	// The challenge must stay pending so Alice can still see it.
	got, _ := env.matches.GetByID(context.Background(), m.ID)
	if got.Status != domain.MatchPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestDecline(t *testing.T) {
	env := newMatchEnv(t)
	m := env.challenge(t, testNow.Add(72*time.Hour))

	got, err := env.svc.Decline(context.Background(), m.ID, env.b.ID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if got.Status != domain.MatchDeclined {
		t.Errorf("status = %s, want declined", got.Status)
	}
	if n := env.queue.byCategory(env.a.ID, domain.CategoryMatchDeclined); len(n) != 1 {
		t.Errorf("challenger has %d decline notifications, want 1", len(n))
	}

	// Terminal: no further transitions.
	if _, err := env.svc.Accept(context.Background(), m.ID, env.b.ID); err != ErrWrongStatus {
		t.Errorf("Accept after decline = %v, want ErrWrongStatus", err)
	}
}

func TestCancelPendingOnlyByInitiator(t *testing.T) {
	env := newMatchEnv(t)
	m := env.challenge(t, testNow.Add(72*time.Hour))

	if _, err := env.svc.Cancel(context.Background(), m.ID, env.b.ID, CancelInput{}); err != ErrNotInitiator {
		t.Fatalf("Cancel by opponent = %v, want ErrNotInitiator", err)
	}
	got, err := env.svc.Cancel(context.Background(), m.ID, env.a.ID, CancelInput{})
	if err != nil {
		t.Fatalf("Cancel by challenger: %v", err)
	}
	if got.Status != domain.MatchCanceled {
		t.Errorf("status = %s, want canceled", got.Status)
	}
}

func TestCancelConfirmedWithdrawsReminders(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)
	m := env.challenge(t, start)

	if _, err := env.svc.Accept(context.Background(), m.ID, env.b.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	reason := "injured"
	got, err := env.svc.Cancel(context.Background(), m.ID, env.b.ID, CancelInput{Reason: &reason})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.CanceledBy == nil || *got.CanceledBy != env.b.ID {
		t.Error("CanceledBy not recorded")
	}

	for _, playerID := range []uuid.UUID{env.a.ID, env.b.ID} {
		if n := env.queue.byCategory(playerID, domain.CategoryReminder24h); len(n) != 0 {
			t.Errorf("player %s still has %d 24h reminders", playerID, len(n))
		}
		if n := env.queue.byCategory(playerID, domain.CategoryReminder2h); len(n) != 0 {
			t.Errorf("player %s still has %d 2h reminders", playerID, len(n))
		}
	}
	if n := env.queue.byCategory(env.a.ID, domain.CategoryMatchCanceled); len(n) != 1 {
		t.Errorf("opponent has %d cancellation notifications, want 1", len(n))
	}
}

func TestCancelAfterStart(t *testing.T) {
	env := newMatchEnv(t)
	m := env.challenge(t, testNow.Add(72*time.Hour))
	if _, err := env.svc.Accept(context.Background(), m.ID, env.b.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	env.matches.mu.Lock()
	env.matches.matches[m.ID].StartTime = testNow.Add(-time.Hour)
	env.matches.mu.Unlock()

	if _, err := env.svc.Cancel(context.Background(), m.ID, env.a.ID, CancelInput{}); err != ErrMatchStarted {
		t.Errorf("Cancel after start = %v, want ErrMatchStarted", err)
	}
}

func TestExpireDueSweep(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)

	stale := env.challenge(t, start)
	env.matches.mu.Lock()
	env.matches.matches[stale.ID].CreatedAt = testNow.Add(-50 * time.Hour)
	env.matches.mu.Unlock()

	fresh, err := env.svc.Create(context.Background(), env.a.ID, CreateChallengeInput{
		OpponentID: env.b.ID,
		StartTime:  start.Add(24 * time.Hour),
		EndTime:    start.Add(25 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := env.svc.ExpireDue(context.Background(), testNow, 100)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d matches, want 1", n)
	}

	got, _ := env.matches.GetByID(context.Background(), stale.ID)
	if got.Status != domain.MatchExpired {
		t.Errorf("stale challenge = %s, want expired", got.Status)
	}
	got, _ = env.matches.GetByID(context.Background(), fresh.ID)
	if got.Status != domain.MatchPending {
		t.Errorf("fresh challenge = %s, want pending", got.Status)
	}
}

func TestConcurrentAcceptAndExpireOneWinner(t *testing.T) {
	env := newMatchEnv(t)
	start := testNow.Add(72 * time.Hour)
	m := env.challenge(t, start)

	// An accept racing the expiry sweep: the compare-and-set transitions
	// guarantee exactly one side wins and the loser sees a stale-state
	// error, never a double transition.
	var wg sync.WaitGroup
	var acceptErr, expireErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = env.svc.Accept(context.Background(), m.ID, env.b.ID)
	}()
	go func() {
		defer wg.Done()
		expireErr = env.matches.Expire(context.Background(), m.ID, testNow)
	}()
	wg.Wait()

	got, _ := env.matches.GetByID(context.Background(), m.ID)
	switch got.Status {
	case domain.MatchExpired:
		if acceptErr == nil {
			t.Error("match expired but Accept also reported success")
		}
		if expireErr != nil {
			t.Errorf("expire won the race but returned %v", expireErr)
		}
	case domain.MatchConfirmed:
		if acceptErr != nil {
			t.Errorf("match confirmed but Accept returned %v", acceptErr)
		}
		if expireErr == nil {
			t.Error("accept won the race but Expire also reported success")
		}
	default:
		t.Errorf("final status = %s, want confirmed or expired", got.Status)
	}
}

func TestGetMatchVisibility(t *testing.T) {
	env := newMatchEnv(t)
	m := env.challenge(t, testNow.Add(72*time.Hour))

	if _, err := env.svc.GetMatch(context.Background(), m.ID, uuid.New()); err != ErrNotParticipant {
		t.Errorf("GetMatch by stranger = %v, want ErrNotParticipant", err)
	}
	if _, err := env.svc.GetMatch(context.Background(), uuid.New(), env.a.ID); err != ErrMatchNotFound {
		t.Errorf("GetMatch unknown id = %v, want ErrMatchNotFound", err)
	}
	if _, err := env.svc.GetMatch(context.Background(), m.ID, env.b.ID); err != nil {
		t.Errorf("GetMatch by participant: %v", err)
	}
}
