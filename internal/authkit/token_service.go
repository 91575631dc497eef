package authkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/evently/pkg/tokenvalidator"
	"go.uber.org/zap"
)

var (
	errMissingAccessSigningKey  = errors.New("token_service.missing_access_signing_key")
	errMissingRefreshSigningKey = errors.New("token_service.missing_refresh_signing_key")
	errSharedSigningKey         = errors.New("token_service.shared_signing_key")
	errMissingCredentialStore   = errors.New("token_service.missing_credential_store")
	errInvalidTTL               = errors.New("token_service.invalid_ttl")
)

// TokenPair is returned to the client once; only the refresh token hash is persisted.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService issues, verifies, rotates, and revokes access/refresh token pairs.
//
// Session lifecycle per user: no hash stored (no session) -> hash stored on login ->
// hash replaced on every successful rotation -> hash cleared on logout. A failed
// rotation leaves the stored hash untouched.
type TokenService struct {
	configuration    ServerConfig
	store            CredentialStore
	clock            Clock
	logger           *zap.Logger
	accessValidator  *tokenvalidator.Validator
	refreshValidator *tokenvalidator.Validator
}

// NewTokenService validates the configuration and builds one validator per signing key.
func NewTokenService(configuration ServerConfig, store CredentialStore, clock Clock, logger *zap.Logger) (*TokenService, error) {
	if store == nil {
		return nil, errMissingCredentialStore
	}
	if len(configuration.AccessSigningKey) == 0 {
		return nil, errMissingAccessSigningKey
	}
	if len(configuration.RefreshSigningKey) == 0 {
		return nil, errMissingRefreshSigningKey
	}
	if bytes.Equal(configuration.AccessSigningKey, configuration.RefreshSigningKey) {
		return nil, errSharedSigningKey
	}
	if configuration.AccessTTL <= 0 || configuration.RefreshTTL <= 0 {
		return nil, errInvalidTTL
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	accessValidator, accessErr := tokenvalidator.New(tokenvalidator.Config{
		SigningKey: configuration.AccessSigningKey,
		Issuer:     configuration.TokenIssuer,
		Clock:      clock,
	})
	if accessErr != nil {
		return nil, fmt.Errorf("token_service.access_validator: %w", accessErr)
	}
	refreshValidator, refreshErr := tokenvalidator.New(tokenvalidator.Config{
		SigningKey: configuration.RefreshSigningKey,
		Issuer:     configuration.TokenIssuer,
		Clock:      clock,
	})
	if refreshErr != nil {
		return nil, fmt.Errorf("token_service.refresh_validator: %w", refreshErr)
	}
	return &TokenService{
		configuration:    configuration,
		store:            store,
		clock:            clock,
		logger:           logger,
		accessValidator:  accessValidator,
		refreshValidator: refreshValidator,
	}, nil
}

// Authenticate returns the user when the email and password match. A missing user
// and a wrong password both yield ok=false; err is reserved for storage failures.
func (service *TokenService) Authenticate(ctx context.Context, email string, plaintextPassword string) (User, bool, error) {
	user, findErr := service.store.FindUserByEmail(ctx, email)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) || errors.Is(findErr, ErrEmptyEmail) {
			burnPasswordComparison(plaintextPassword)
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("token_service.authenticate: %w", findErr)
	}
	if !passwordMatches(user.PasswordHash, plaintextPassword) {
		return User{}, false, nil
	}
	return user, true, nil
}

// ConfirmPassword re-verifies the password of an already authenticated user.
func (service *TokenService) ConfirmPassword(ctx context.Context, userID uint, plaintextPassword string) (bool, error) {
	user, findErr := service.store.FindUserByID(ctx, userID)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			burnPasswordComparison(plaintextPassword)
			return false, nil
		}
		return false, fmt.Errorf("token_service.confirm_password: %w", findErr)
	}
	return passwordMatches(user.PasswordHash, plaintextPassword), nil
}

// IssueTokenPair mints a new pair and overwrites the stored refresh token hash.
func (service *TokenService) IssueTokenPair(ctx context.Context, user User) (TokenPair, error) {
	pair, mintErr := service.mintTokenPair(user)
	if mintErr != nil {
		return TokenPair{}, mintErr
	}
	if storeErr := service.store.StoreRefreshTokenHash(ctx, user.ID, hashRefreshToken(pair.RefreshToken)); storeErr != nil {
		return TokenPair{}, fmt.Errorf("token_service.issue: %w", storeErr)
	}
	return pair, nil
}

// VerifyAccessToken checks signature and expiry only; it never touches storage.
func (service *TokenService) VerifyAccessToken(accessToken string) (*tokenvalidator.Claims, error) {
	claims, err := service.accessValidator.ValidateToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("token_service.verify_access: %w: %w", ErrUnauthenticated, err)
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry against the refresh signing key.
func (service *TokenService) VerifyRefreshToken(refreshToken string) (*tokenvalidator.Claims, error) {
	claims, err := service.refreshValidator.ValidateToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token_service.verify_refresh: %w: %w", ErrUnauthenticated, err)
	}
	return claims, nil
}

// RotateRefreshToken exchanges the presented refresh token for a new pair. The
// presented token must match the stored hash; the replacement is written with an
// atomic compare-and-swap so one refresh token can be rotated at most once.
func (service *TokenService) RotateRefreshToken(ctx context.Context, userID uint, presentedRefreshToken string) (TokenPair, error) {
	user, findErr := service.store.FindUserByID(ctx, userID)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			return TokenPair{}, fmt.Errorf("token_service.rotate: %w: %w", ErrUnauthenticated, findErr)
		}
		return TokenPair{}, fmt.Errorf("token_service.rotate: %w", findErr)
	}
	if !user.HasActiveSession() {
		return TokenPair{}, fmt.Errorf("token_service.rotate: %w: %w", ErrUnauthenticated, ErrNoActiveSession)
	}
	if !refreshTokenMatches(user.RefreshTokenHash, presentedRefreshToken) {
		return TokenPair{}, fmt.Errorf("token_service.rotate: %w: %w", ErrUnauthenticated, ErrRefreshTokenMismatch)
	}

	pair, mintErr := service.mintTokenPair(user)
	if mintErr != nil {
		return TokenPair{}, mintErr
	}
	swapErr := service.store.SwapRefreshTokenHash(ctx, user.ID, user.RefreshTokenHash, hashRefreshToken(pair.RefreshToken))
	if swapErr != nil {
		if errors.Is(swapErr, ErrRefreshTokenMismatch) {
			service.logger.Warn("refresh token rotated concurrently",
				zap.String("code", "auth.rotate.lost_race"),
				zap.Uint("user_id", user.ID))
			return TokenPair{}, fmt.Errorf("token_service.rotate: %w: %w", ErrUnauthenticated, swapErr)
		}
		return TokenPair{}, fmt.Errorf("token_service.rotate: %w", swapErr)
	}
	return pair, nil
}

// Revoke clears the stored refresh token hash. Revoking twice is not an error.
func (service *TokenService) Revoke(ctx context.Context, userID uint) error {
	if err := service.store.ClearRefreshTokenHash(ctx, userID); err != nil {
		return fmt.Errorf("token_service.revoke: %w", err)
	}
	return nil
}

// FindUser loads the credential record for an authenticated user.
func (service *TokenService) FindUser(ctx context.Context, userID uint) (User, error) {
	return service.store.FindUserByID(ctx, userID)
}

func (service *TokenService) mintTokenPair(user User) (TokenPair, error) {
	if user.ID == 0 || strings.TrimSpace(user.Email) == "" {
		return TokenPair{}, fmt.Errorf("token_service.mint: %w", ErrUserNotFound)
	}
	accessToken, accessExpiresAt, accessErr := MintToken(service.clock, user.ID, user.Email, service.configuration.TokenIssuer, service.configuration.AccessSigningKey, service.configuration.AccessTTL)
	if accessErr != nil {
		return TokenPair{}, fmt.Errorf("token_service.mint_access: %w", accessErr)
	}
	refreshToken, refreshExpiresAt, refreshErr := MintToken(service.clock, user.ID, user.Email, service.configuration.TokenIssuer, service.configuration.RefreshSigningKey, service.configuration.RefreshTTL)
	if refreshErr != nil {
		return TokenPair{}, fmt.Errorf("token_service.mint_refresh: %w", refreshErr)
	}
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
