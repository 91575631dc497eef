package authkit

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tyemirov/evently/internal/storage"
	"go.uber.org/zap/zaptest"
)

type controllableClock struct {
	mutex   sync.Mutex
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(duration)
}

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		AccessSigningKey:  []byte("access-secret-1234567890"),
		RefreshSigningKey: []byte("refresh-secret-0987654321"),
		TokenIssuer:       "evently-test",
		RefreshCookieName: "refresh_token",
		RefreshCookiePath: "/auth",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		SameSiteMode:      http.SameSiteStrictMode,
	}
}

func newTestTokenService(t *testing.T, store CredentialStore, clock Clock) *TokenService {
	t.Helper()
	service, err := NewTokenService(newTestServerConfig(), store, clock, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return service
}

func seedUser(t *testing.T, store CredentialStore, email string, password string) User {
	t.Helper()
	passwordHash, hashErr := HashPassword(password)
	if hashErr != nil {
		t.Fatalf("hash password: %v", hashErr)
	}
	user, createErr := store.CreateUser(context.Background(), email, passwordHash)
	if createErr != nil {
		t.Fatalf("create user: %v", createErr)
	}
	return user
}

func newSQLiteCredentialStore(t *testing.T) *DatabaseCredentialStore {
	t.Helper()
	databaseURL := "sqlite://" + filepath.Join(t.TempDir(), "credentials.db") + "?_pragma=busy_timeout(5000)"
	database, openErr := storage.Open(context.Background(), databaseURL)
	if openErr != nil {
		t.Fatalf("open sqlite: %v", openErr)
	}
	t.Cleanup(func() { _ = database.Close() })
	store, storeErr := NewDatabaseCredentialStore(context.Background(), database.DB)
	if storeErr != nil {
		t.Fatalf("credential store: %v", storeErr)
	}
	return store
}
