package authkit

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

var tokenIDEntropySource io.Reader = rand.Reader

func newTokenID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(tokenIDEntropySource, 0)
	tokenID, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", fmt.Errorf("token_id.random: %w", err)
	}
	return tokenID.String(), nil
}

func hashRefreshToken(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func refreshTokenMatches(storedHash string, presentedRefreshToken string) bool {
	presentedHash := hashRefreshToken(presentedRefreshToken)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(presentedHash)) == 1
}
