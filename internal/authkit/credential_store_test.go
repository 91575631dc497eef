package authkit

import (
	"context"
	"errors"
	"testing"
)

func TestCredentialStoresShareContract(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		store func(t *testing.T) CredentialStore
	}{
		{
			name: "memory",
			store: func(t *testing.T) CredentialStore {
				t.Helper()
				return NewMemoryCredentialStore()
			},
		},
		{
			name: "sqlite",
			store: func(t *testing.T) CredentialStore {
				t.Helper()
				return newSQLiteCredentialStore(t)
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := testCase.store(t)

			if _, err := store.FindUserByEmail(ctx, "missing@x.com"); !errors.Is(err, ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound, got %v", err)
			}
			if _, err := store.FindUserByEmail(ctx, "  "); !errors.Is(err, ErrEmptyEmail) {
				t.Fatalf("expected ErrEmptyEmail, got %v", err)
			}

			created, createErr := store.CreateUser(ctx, " A@X.com ", "hash-value")
			if createErr != nil {
				t.Fatalf("create user: %v", createErr)
			}
			if created.ID == 0 || created.Email != "a@x.com" || created.HasActiveSession() {
				t.Fatalf("unexpected created user %#v", created)
			}
			if _, err := store.CreateUser(ctx, "a@x.com", "other-hash"); !errors.Is(err, ErrEmailTaken) {
				t.Fatalf("expected ErrEmailTaken, got %v", err)
			}

			found, findErr := store.FindUserByEmail(ctx, "a@X.COM")
			if findErr != nil || found.ID != created.ID {
				t.Fatalf("expected case-insensitive lookup, got %#v %v", found, findErr)
			}
			if _, err := store.FindUserByID(ctx, created.ID+100); !errors.Is(err, ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound by id, got %v", err)
			}

			if err := store.SwapRefreshTokenHash(ctx, created.ID, "", "hash-1"); !errors.Is(err, ErrRefreshTokenMismatch) {
				t.Fatalf("expected swap without session to fail, got %v", err)
			}
			if err := store.StoreRefreshTokenHash(ctx, created.ID, "hash-1"); err != nil {
				t.Fatalf("store hash: %v", err)
			}
			if err := store.StoreRefreshTokenHash(ctx, created.ID+100, "hash-1"); !errors.Is(err, ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound storing for missing user, got %v", err)
			}
			if err := store.SwapRefreshTokenHash(ctx, created.ID, "stale", "hash-2"); !errors.Is(err, ErrRefreshTokenMismatch) {
				t.Fatalf("expected ErrRefreshTokenMismatch, got %v", err)
			}
			if err := store.SwapRefreshTokenHash(ctx, created.ID, "hash-1", "hash-2"); err != nil {
				t.Fatalf("swap: %v", err)
			}
			if err := store.SwapRefreshTokenHash(ctx, created.ID, "hash-1", "hash-3"); !errors.Is(err, ErrRefreshTokenMismatch) {
				t.Fatalf("expected second swap from same hash to fail, got %v", err)
			}

			current, _ := store.FindUserByID(ctx, created.ID)
			if current.RefreshTokenHash != "hash-2" {
				t.Fatalf("expected hash-2, got %q", current.RefreshTokenHash)
			}

			if err := store.ClearRefreshTokenHash(ctx, created.ID); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if err := store.ClearRefreshTokenHash(ctx, created.ID); err != nil {
				t.Fatalf("second clear should be idempotent: %v", err)
			}
			cleared, _ := store.FindUserByID(ctx, created.ID)
			if cleared.HasActiveSession() {
				t.Fatalf("expected no active session after clear")
			}
			if err := store.SwapRefreshTokenHash(ctx, created.ID, "hash-2", "hash-4"); !errors.Is(err, ErrRefreshTokenMismatch) {
				t.Fatalf("expected swap after clear to fail, got %v", err)
			}
		})
	}
}
