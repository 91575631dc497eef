package authkit

import (
	"net/http"
	"time"
)

// ServerConfig configures signing keys, cookies, and TTLs.
type ServerConfig struct {
	AccessSigningKey  []byte
	RefreshSigningKey []byte
	TokenIssuer       string
	CookieDomain      string
	RefreshCookieName string
	RefreshCookiePath string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SameSiteMode      http.SameSite
}
