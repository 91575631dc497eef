package authkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/evently/pkg/tokenvalidator"
)

const claimsContextKey = tokenvalidator.DefaultContextKey

// RequireAccessToken validates the bearer access token and injects its claims.
func RequireAccessToken(tokens *TokenService) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, err := tokens.accessValidator.ValidateRequest(contextGin.Request)
		if err != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		contextGin.Set(claimsContextKey, claims)
		contextGin.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireAccessToken.
func ClaimsFromContext(contextGin *gin.Context) (*tokenvalidator.Claims, bool) {
	value, found := contextGin.Get(claimsContextKey)
	if !found {
		return nil, false
	}
	claims, ok := value.(*tokenvalidator.Claims)
	if !ok || claims == nil || claims.UserID == 0 {
		return nil, false
	}
	return claims, true
}
