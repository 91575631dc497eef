package tokenvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

func mintToken(t *testing.T, signingKey []byte, issuer string, userID uint, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		UserEmail: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "7",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	result, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return result
}

func newTestValidator(t *testing.T, now time.Time) *Validator {
	t.Helper()
	validator, err := New(Config{
		SigningKey: []byte("access-secret"),
		Issuer:     "evently",
		Clock:      fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return validator
}

func TestNewValidatorRequiresSigningKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Issuer: "issuer"})
	if err == nil || !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
}

func TestNewValidatorRequiresIssuer(t *testing.T) {
	t.Parallel()

	_, err := New(Config{SigningKey: []byte("secret")})
	if err == nil || !errors.Is(err, ErrMissingIssuer) {
		t.Fatalf("expected missing issuer error, got %v", err)
	}
}

func TestNewValidatorDefaultsClock(t *testing.T) {
	t.Parallel()

	validator, err := New(Config{SigningKey: []byte("secret"), Issuer: "issuer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validator.clock == nil {
		t.Fatalf("expected default clock to be set")
	}
}

func TestValidateTokenSuccess(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, now)
	tokenValue := mintToken(t, []byte("access-secret"), "evently", 7, now, 15*time.Minute)

	claims, validateErr := validator.ValidateToken(tokenValue)
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != 7 || claims.GetUserEmail() != "a@x.com" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if !claims.GetExpiresAt().Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", claims.GetExpiresAt())
	}
}

func TestValidateTokenExpiryBoundary(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("access-secret"), "evently", 7, issuedAt, 15*time.Minute)
	expiresAt := issuedAt.Add(15 * time.Minute)

	if _, err := newTestValidator(t, expiresAt.Add(-time.Second)).ValidateToken(tokenValue); err != nil {
		t.Fatalf("expected token to be valid one second before expiry, got %v", err)
	}
	if _, err := newTestValidator(t, expiresAt).ValidateToken(tokenValue); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at the exact expiry instant, got %v", err)
	}
	if _, err := newTestValidator(t, expiresAt.Add(time.Second)).ValidateToken(tokenValue); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after expiry, got %v", err)
	}
}

func TestValidateTokenRejectsInvalidCases(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tests := []struct {
		name      string
		tokenFunc func() string
		expectErr error
	}{
		{
			name:      "empty token",
			tokenFunc: func() string { return "" },
			expectErr: ErrMissingToken,
		},
		{
			name: "bad signature",
			tokenFunc: func() string {
				return mintToken(t, []byte("refresh-secret"), "evently", 7, now, time.Minute)
			},
			expectErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			tokenFunc: func() string {
				return mintToken(t, []byte("access-secret"), "other-issuer", 7, now, time.Minute)
			},
			expectErr: ErrInvalidIssuer,
		},
		{
			name: "missing user id",
			tokenFunc: func() string {
				return mintToken(t, []byte("access-secret"), "evently", 0, now, time.Minute)
			},
			expectErr: ErrInvalidSubject,
		},
		{
			name: "not yet valid",
			tokenFunc: func() string {
				return mintToken(t, []byte("access-secret"), "evently", 7, now.Add(time.Hour), time.Hour)
			},
			expectErr: ErrInvalidToken,
		},
		{
			name:      "garbage",
			tokenFunc: func() string { return "not-a-jwt" },
			expectErr: ErrInvalidToken,
		},
	}

	validator := newTestValidator(t, now)
	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := validator.ValidateToken(testCase.tokenFunc())
			if !errors.Is(err, testCase.expectErr) {
				t.Fatalf("expected %v, got %v", testCase.expectErr, err)
			}
		})
	}
}

func TestValidateRequestReadsBearerHeader(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, now)
	tokenValue := mintToken(t, []byte("access-secret"), "evently", 7, now, time.Minute)

	request := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if _, err := validator.ValidateRequest(request); !errors.Is(err, ErrMissingBearer) {
		t.Fatalf("expected ErrMissingBearer without header, got %v", err)
	}

	request.Header.Set("Authorization", "Basic abc")
	if _, err := validator.ValidateRequest(request); !errors.Is(err, ErrMissingBearer) {
		t.Fatalf("expected ErrMissingBearer for basic scheme, got %v", err)
	}

	request.Header.Set("Authorization", "bearer "+tokenValue)
	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.GetUserID() != 7 {
		t.Fatalf("unexpected user id %d", claims.GetUserID())
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, now)

	router := gin.New()
	router.Use(validator.GinMiddleware(""))
	router.GET("/protected", func(contextGin *gin.Context) {
		value, found := contextGin.Get(DefaultContextKey)
		if !found {
			t.Fatalf("expected claims on context")
		}
		claims := value.(*Claims)
		contextGin.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})

	unauthorized := httptest.NewRecorder()
	router.ServeHTTP(unauthorized, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if unauthorized.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", unauthorized.Code)
	}

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+mintToken(t, []byte("access-secret"), "evently", 7, now, time.Minute))
	authorized := httptest.NewRecorder()
	router.ServeHTTP(authorized, request)
	if authorized.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", authorized.Code)
	}
}
