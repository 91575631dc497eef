package authkit

import (
	"context"
	"strings"
)

// User is a credential record. RefreshTokenHash is empty when no session is active.
type User struct {
	ID               uint
	Email            string
	PasswordHash     string
	RefreshTokenHash string
}

// HasActiveSession reports whether a refresh token hash is stored for the user.
func (user User) HasActiveSession() bool {
	return user.RefreshTokenHash != ""
}

// CredentialStore persists users and the hash of their single active refresh token.
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, userID uint) (User, error)
	// StoreRefreshTokenHash overwrites any previously stored hash.
	StoreRefreshTokenHash(ctx context.Context, userID uint, refreshTokenHash string) error
	// SwapRefreshTokenHash replaces expectedHash with newHash in one atomic step and
	// returns ErrRefreshTokenMismatch when the stored hash is no longer expectedHash.
	SwapRefreshTokenHash(ctx context.Context, userID uint, expectedHash string, newHash string) error
	ClearRefreshTokenHash(ctx context.Context, userID uint) error
	CreateUser(ctx context.Context, email string, passwordHash string) (User, error)
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
