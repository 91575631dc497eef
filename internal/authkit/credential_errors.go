package authkit

import "errors"

var (
	// ErrUserNotFound indicates no user matched the provided email or identifier.
	ErrUserNotFound = errors.New("credential_store.user_not_found")
	// ErrNoActiveSession indicates the user has no stored refresh token hash.
	ErrNoActiveSession = errors.New("credential_store.no_active_session")
	// ErrRefreshTokenMismatch indicates the stored refresh token hash did not match the expected value.
	ErrRefreshTokenMismatch = errors.New("credential_store.refresh_token_mismatch")
	// ErrEmailTaken indicates a user with the same email already exists.
	ErrEmailTaken = errors.New("credential_store.email_taken")
	// ErrEmptyEmail indicates that the provided email is blank.
	ErrEmptyEmail = errors.New("credential_store.empty_email")

	// ErrUnauthenticated is the single external signal for every authentication failure.
	ErrUnauthenticated = errors.New("token_service.unauthenticated")
)
