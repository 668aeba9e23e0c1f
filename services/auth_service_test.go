package services

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	auth := NewAuthService(fakeUserRepo{store})
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("name = %q, want alice", user.Name)
	}
	if user.PasswordHash == "hunter2" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	logged, err := auth.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Errorf("login returned user %s, want %s", logged.ID, user.ID)
	}
}

func TestRegisterRejectsDuplicatesAndBlanks(t *testing.T) {
	store := newMemStore()
	auth := NewAuthService(fakeUserRepo{store})
	ctx := context.Background()

	if _, err := auth.Register(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := auth.Register(ctx, "alice", "other"); !errors.Is(err, ErrUserNameTaken) {
		t.Errorf("duplicate name: got %v, want ErrUserNameTaken", err)
	}
	if _, err := auth.Register(ctx, "", "pw"); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("blank name: got %v, want ErrValidationFailed", err)
	}
	if _, err := auth.Register(ctx, "bob", ""); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("blank password: got %v, want ErrValidationFailed", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newMemStore()
	auth := NewAuthService(fakeUserRepo{store})
	ctx := context.Background()

	if _, err := auth.Register(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := auth.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := auth.Login(ctx, "nobody", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v, want ErrInvalidCredentials", err)
	}
}
