package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"messenger/internal/domain"
)

func newUserFixture(t *testing.T) (*UserService, *mockUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &mockUserRepo{users: map[string]domain.User{
		"u1": {ID: "u1", Username: "alice", PasswordHash: string(hash)},
	}}
	return NewUserService(zap.NewNop(), users), users
}

func TestUserServiceAuthenticate(t *testing.T) {
	svc, _ := newUserFixture(t)

	user, err := svc.Authenticate(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserServiceAuthenticate_BadCredentials(t *testing.T) {
	svc, _ := newUserFixture(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "s3cret"},
		{"empty username", "", "s3cret"},
		{"empty password", "alice", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Authenticate(context.Background(), tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestUserServiceGetByID(t *testing.T) {
	svc, _ := newUserFixture(t)

	user, err := svc.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.GetByID(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserServiceSearch_EmptyQuery(t *testing.T) {
	svc, _ := newUserFixture(t)

	out, err := svc.Search(context.Background(), "   ", "u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result for empty query, got %v", out)
	}
}

func TestUserServiceNilReceiver(t *testing.T) {
	var svc *UserService
	if _, err := svc.Authenticate(context.Background(), "alice", "pw"); err == nil {
		t.Fatalf("expected error from unconfigured service")
	}
	if _, err := svc.GetByID(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error from unconfigured service")
	}
}
