package authkit

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword produces the bcrypt hash stored in User.PasswordHash.
func HashPassword(plaintextPassword string) (string, error) {
	if plaintextPassword == "" {
		return "", fmt.Errorf("password.hash: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("password.hash: %w", err)
	}
	return string(hash), nil
}

// dummyPasswordHash is compared against when the user does not exist so that
// both failure paths of Authenticate spend a bcrypt comparison.
var dummyPasswordHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("evently.dummy.password"), bcrypt.DefaultCost)
	return hash
})

func passwordMatches(passwordHash string, plaintextPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(plaintextPassword)) == nil
}

func burnPasswordComparison(plaintextPassword string) {
	_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(plaintextPassword))
}
