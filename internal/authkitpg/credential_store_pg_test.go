package authkitpg

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tyemirov/evently/internal/authkit"
)

const postgresURLEnvironmentKey = "APP_TEST_POSTGRES_URL"

func newPostgresStore(t *testing.T) *PostgresCredentialStore {
	t.Helper()
	databaseURL := os.Getenv(postgresURLEnvironmentKey)
	if databaseURL == "" {
		t.Skipf("%s not set", postgresURLEnvironmentKey)
	}
	ctx := context.Background()
	pool, err := BuildPool(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users RESTART IDENTITY`)
	require.NoError(t, err)
	return NewPostgresCredentialStore(pool)
}

func TestPostgresCredentialStoreContract(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	_, err := store.FindUserByEmail(ctx, "missing@x.com")
	require.ErrorIs(t, err, authkit.ErrUserNotFound)
	_, err = store.FindUserByEmail(ctx, " ")
	require.ErrorIs(t, err, authkit.ErrEmptyEmail)

	created, err := store.CreateUser(ctx, " A@X.com ", "hash-value")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", created.Email)
	require.False(t, created.HasActiveSession())

	_, err = store.CreateUser(ctx, "a@x.com", "other")
	require.ErrorIs(t, err, authkit.ErrEmailTaken)

	found, err := store.FindUserByEmail(ctx, "a@X.COM")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	require.ErrorIs(t, store.SwapRefreshTokenHash(ctx, created.ID, "", "hash-1"), authkit.ErrRefreshTokenMismatch)
	require.NoError(t, store.StoreRefreshTokenHash(ctx, created.ID, "hash-1"))
	require.ErrorIs(t, store.StoreRefreshTokenHash(ctx, created.ID+100, "hash-1"), authkit.ErrUserNotFound)
	require.ErrorIs(t, store.SwapRefreshTokenHash(ctx, created.ID, "stale", "hash-2"), authkit.ErrRefreshTokenMismatch)
	require.NoError(t, store.SwapRefreshTokenHash(ctx, created.ID, "hash-1", "hash-2"))
	require.ErrorIs(t, store.SwapRefreshTokenHash(ctx, created.ID, "hash-1", "hash-3"), authkit.ErrRefreshTokenMismatch)

	current, err := store.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-2", current.RefreshTokenHash)

	require.NoError(t, store.ClearRefreshTokenHash(ctx, created.ID))
	require.NoError(t, store.ClearRefreshTokenHash(ctx, created.ID))
	cleared, err := store.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, cleared.HasActiveSession())
}

func TestPostgresConcurrentSwapHasSingleWinner(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, "race@x.com", "hash-value")
	require.NoError(t, err)
	require.NoError(t, store.StoreRefreshTokenHash(ctx, created.ID, "hash-0"))

	const attempts = 8
	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		winners   int
	)
	for attempt := 0; attempt < attempts; attempt++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			if swapErr := store.SwapRefreshTokenHash(ctx, created.ID, "hash-0", "hash-new"); swapErr == nil {
				mutex.Lock()
				winners++
				mutex.Unlock()
			}
		}(attempt)
	}
	waitGroup.Wait()
	require.Equal(t, 1, winners)
}
