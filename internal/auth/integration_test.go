//go:build integration

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joao-fontenele/farmstore/internal/testdb"
)

func TestUserRepository_EnsureAdmin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo := NewUserRepository(testdb.SetupPostgres(ctx, t))

	created, err := repo.EnsureAdmin(ctx, "admin", "s3cret")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !created {
		t.Fatal("expected admin to be created")
	}

	created, err = repo.EnsureAdmin(ctx, "admin", "different")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if created {
		t.Error("expected existing admin to be kept")
	}

	user, err := repo.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if !user.IsAdmin {
		t.Error("expected admin flag")
	}
	if !CheckPassword(user.PasswordHash, "s3cret") {
		t.Error("expected original password to still match")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Username != "admin" {
		t.Errorf("expected admin, got %s", byID.Username)
	}

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
