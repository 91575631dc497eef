package authkit

import (
	"testing"
	"time"

	"github.com/tyemirov/evently/pkg/tokenvalidator"
)

type fixedClock struct {
	timestamp time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.timestamp
}

func TestMintTokenRejectsEmptySubject(t *testing.T) {
	t.Parallel()

	_, _, err := MintToken(fixedClock{timestamp: time.Unix(1700000000, 0)}, 0, "a@x.com", "issuer", []byte("signing-key"), time.Minute)
	if err == nil {
		t.Fatalf("expected error when user ID is empty")
	}

	expected := "jwt.mint.failure: subject must be non-empty"
	if err.Error() != expected {
		t.Fatalf("expected error %q, got %q", expected, err.Error())
	}
}

func TestMintTokenRejectsEmptyEmail(t *testing.T) {
	t.Parallel()

	if _, _, err := MintToken(fixedClock{timestamp: time.Unix(1700000000, 0)}, 1, " ", "issuer", []byte("signing-key"), time.Minute); err == nil {
		t.Fatalf("expected error when email is empty")
	}
}

func TestMintTokenCarriesClockTimestamps(t *testing.T) {
	t.Parallel()

	reference := time.Unix(1700000000, 0).UTC()
	token, expiresAt, err := MintToken(fixedClock{timestamp: reference}, 42, "a@x.com", "issuer", []byte("signing-key"), 2*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected signed token")
	}
	expectedExpiry := reference.Add(2 * time.Minute)
	if !expiresAt.Equal(expectedExpiry) {
		t.Fatalf("expected expiry %v, got %v", expectedExpiry, expiresAt)
	}

	validator, validatorErr := tokenvalidator.New(tokenvalidator.Config{
		SigningKey: []byte("signing-key"),
		Issuer:     "issuer",
		Clock:      fixedClock{timestamp: reference.Add(time.Minute)},
	})
	if validatorErr != nil {
		t.Fatalf("validator: %v", validatorErr)
	}
	claims, validateErr := validator.ValidateToken(token)
	if validateErr != nil {
		t.Fatalf("validate: %v", validateErr)
	}
	if claims.UserID != 42 || claims.Subject != "42" || claims.ID == "" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestMintTokenProducesDistinctTokensWithinOneSecond(t *testing.T) {
	t.Parallel()

	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	first, _, firstErr := MintToken(clock, 1, "a@x.com", "issuer", []byte("signing-key"), time.Minute)
	second, _, secondErr := MintToken(clock, 1, "a@x.com", "issuer", []byte("signing-key"), time.Minute)
	if firstErr != nil || secondErr != nil {
		t.Fatalf("unexpected errors: %v %v", firstErr, secondErr)
	}
	if first == second {
		t.Fatalf("expected unique token ids to make tokens distinct")
	}
}
