package authkit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCredentialStore is an in-memory store intended for tests and dev.
type MemoryCredentialStore struct {
	mutex      sync.Mutex
	byID       map[uint]*User
	byEmail    map[string]uint
	sequenceID uint
}

// NewMemoryCredentialStore creates an empty in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:    make(map[uint]*User),
		byEmail: make(map[string]uint),
	}
}

// CreateUser registers a user with an already hashed password.
func (store *MemoryCredentialStore) CreateUser(ctx context.Context, email string, passwordHash string) (User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return User{}, fmt.Errorf("credential_store.create.memory: %w", ErrEmptyEmail)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, exists := store.byEmail[normalized]; exists {
		return User{}, fmt.Errorf("credential_store.create.memory: %w", ErrEmailTaken)
	}
	store.sequenceID++
	record := &User{
		ID:           store.sequenceID,
		Email:        normalized,
		PasswordHash: passwordHash,
	}
	store.byID[record.ID] = record
	store.byEmail[normalized] = record.ID
	return *record, nil
}

// FindUserByEmail returns a copy of the user registered under the email.
func (store *MemoryCredentialStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return User{}, fmt.Errorf("credential_store.find_by_email.memory: %w", ErrEmptyEmail)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	userID, ok := store.byEmail[normalized]
	if !ok {
		return User{}, fmt.Errorf("credential_store.find_by_email.memory: %w", ErrUserNotFound)
	}
	return *store.byID[userID], nil
}

// FindUserByID returns a copy of the user with the identifier.
func (store *MemoryCredentialStore) FindUserByID(ctx context.Context, userID uint) (User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := store.byID[userID]
	if record == nil {
		return User{}, fmt.Errorf("credential_store.find_by_id.memory: %w", ErrUserNotFound)
	}
	return *record, nil
}

// StoreRefreshTokenHash overwrites the stored hash.
func (store *MemoryCredentialStore) StoreRefreshTokenHash(ctx context.Context, userID uint, refreshTokenHash string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := store.byID[userID]
	if record == nil {
		return fmt.Errorf("credential_store.store_hash.memory: %w", ErrUserNotFound)
	}
	record.RefreshTokenHash = refreshTokenHash
	return nil
}

// SwapRefreshTokenHash replaces the hash only while it still equals expectedHash.
func (store *MemoryCredentialStore) SwapRefreshTokenHash(ctx context.Context, userID uint, expectedHash string, newHash string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := store.byID[userID]
	if record == nil {
		return fmt.Errorf("credential_store.swap_hash.memory: %w", ErrUserNotFound)
	}
	if expectedHash == "" || record.RefreshTokenHash != expectedHash {
		return fmt.Errorf("credential_store.swap_hash.memory: %w", ErrRefreshTokenMismatch)
	}
	record.RefreshTokenHash = newHash
	return nil
}

// ClearRefreshTokenHash removes the stored hash; unknown users are ignored.
func (store *MemoryCredentialStore) ClearRefreshTokenHash(ctx context.Context, userID uint) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if record := store.byID[userID]; record != nil {
		record.RefreshTokenHash = ""
	}
	return nil
}
