package service

import (
	"context"
	"testing"

	"github.com/mstanic/courtside/internal/domain"
)

func newAuthEnv(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	svc := NewAuthService(users, newTestClock(t, testNow), "test-secret")
	return svc, users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthEnv(t)

	resp, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("missing access token")
	}
	if resp.User.Status != domain.UserActive || resp.User.Role != domain.RolePlayer {
		t.Errorf("new user status=%s role=%s, want active player", resp.User.Status, resp.User.Role)
	}
	if resp.User.PasswordHash == "correct horse" {
		t.Error("password stored in the clear")
	}

	login, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != resp.User.ID {
		t.Error("login returned a different user")
	}

	if _, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "wrong",
	}); err != ErrInvalidCreds {
		t.Errorf("bad password = %v, want ErrInvalidCreds", err)
	}
	if _, err := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "correct horse",
	}); err != ErrInvalidCreds {
		t.Errorf("unknown email = %v, want ErrInvalidCreds", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthEnv(t)

	if _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "pw123456",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Imposter", Email: "alice@example.com", Password: "pw123456",
	}); err != ErrEmailTaken {
		t.Errorf("duplicate email = %v, want ErrEmailTaken", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("s3cret")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if !verifyPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if verifyPassword("other", hash) {
		t.Error("wrong password accepted")
	}
	if verifyPassword("s3cret", "garbage") {
		t.Error("malformed hash accepted")
	}
}
