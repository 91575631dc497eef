package authkit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/evently/pkg/tokenvalidator"
)

var (
	errEmptySubject = errors.New("jwt.mint.failure: subject must be non-empty")
	errEmptyEmail   = errors.New("jwt.mint.failure: email must be non-empty")
)

// MintToken creates a signed HS256 token for the user, valid from clock.Now() for ttl.
func MintToken(clock Clock, userID uint, userEmail string, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	if userID == 0 {
		return "", time.Time{}, errEmptySubject
	}
	if strings.TrimSpace(userEmail) == "" {
		return "", time.Time{}, errEmptyEmail
	}
	issuedAt := clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	tokenID, idErr := newTokenID(issuedAt)
	if idErr != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", idErr)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenvalidator.Claims{
		UserID:    userID,
		UserEmail: userEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", err)
	}
	return signed, expiresAt, nil
}
