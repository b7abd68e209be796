package service

import (
	"context"
	"testing"
	"time"

	"github.com/mstanic/courtside/internal/domain"
)

func newUserEnv(t *testing.T) (*UserService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	svc := NewUserService(users, newTestClock(t, testNow), testLogger())
	return svc, users
}

func TestSetVacation(t *testing.T) {
	svc, users := newUserEnv(t)
	u := activeUser("Vera", "vera@example.com", nil)
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	until := testNow.AddDate(0, 0, 10)
	got, err := svc.SetVacation(context.Background(), u.ID, until)
	if err != nil {
		t.Fatalf("SetVacation: %v", err)
	}
	if got.Status != domain.UserVacation {
		t.Errorf("status = %s, want vacation", got.Status)
	}
	if got.VacationUntil == nil || !got.VacationUntil.Equal(until) {
		t.Error("vacation end not recorded")
	}

	if _, err := svc.SetVacation(context.Background(), u.ID, testNow.Add(-time.Hour)); err != ErrVacationEndInPast {
		t.Errorf("past vacation end = %v, want ErrVacationEndInPast", err)
	}
}

func TestReactivateExpiredVacations(t *testing.T) {
	svc, users := newUserEnv(t)

	done := activeUser("Done", "done@example.com", nil)
	done.Status = domain.UserVacation
	endedAt := testNow.Add(-time.Hour)
	done.VacationUntil = &endedAt

	still := activeUser("Still", "still@example.com", nil)
	still.Status = domain.UserVacation
	endsAt := testNow.AddDate(0, 0, 5)
	still.VacationUntil = &endsAt

	for _, u := range []*domain.User{done, still} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seeding user: %v", err)
		}
	}

	n, err := svc.ReactivateExpiredVacations(context.Background())
	if err != nil {
		t.Fatalf("ReactivateExpiredVacations: %v", err)
	}
	if n != 1 {
		t.Errorf("reactivated %d users, want 1", n)
	}

	got, _ := users.GetByID(context.Background(), done.ID)
	if got.Status != domain.UserActive || got.VacationUntil != nil {
		t.Error("ended vacation should reset to active with no end date")
	}
	got, _ = users.GetByID(context.Background(), still.ID)
	if got.Status != domain.UserVacation {
		t.Error("ongoing vacation should be untouched")
	}
}

func TestSetStatus(t *testing.T) {
	svc, users := newUserEnv(t)
	u := activeUser("Ian", "ian@example.com", nil)
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	got, err := svc.SetStatus(context.Background(), u.ID, domain.UserInactive)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if got.Status != domain.UserInactive {
		t.Errorf("status = %s, want inactive", got.Status)
	}

	if _, err := svc.SetStatus(context.Background(), u.ID, domain.UserVacation); err != ErrInvalidStatus {
		t.Errorf("direct vacation set = %v, want ErrInvalidStatus", err)
	}
	if _, err := svc.SetStatus(context.Background(), u.ID, domain.UserStatus("banned")); err != ErrInvalidStatus {
		t.Errorf("unknown status = %v, want ErrInvalidStatus", err)
	}
}
