package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/evently/internal/authkit"
	"go.uber.org/zap"
)

// UserLookup loads a user by id.
type UserLookup interface {
	FindUser(ctx context.Context, userID uint) (authkit.User, error)
}

// HandleWhoAmI echoes the authenticated user. It expects RequireAccessToken upstream.
func HandleWhoAmI(logger *zap.Logger, users UserLookup) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if users == nil {
		panic("user lookup is required")
	}

	return func(contextGin *gin.Context) {
		claims, ok := authkit.ClaimsFromContext(contextGin)
		if !ok {
			logger.Warn("missing auth claims on context",
				zap.String("code", "api.me.missing_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		user, lookupErr := users.FindUser(contextGin, claims.UserID)
		if lookupErr != nil {
			if errors.Is(lookupErr, authkit.ErrUserNotFound) {
				logger.Warn("user missing",
					zap.String("code", "api.me.user_missing"),
					zap.Uint("user_id", claims.UserID))
				contextGin.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			logger.Error("user lookup error",
				zap.String("code", "api.me.lookup_error"),
				zap.Uint("user_id", claims.UserID),
				zap.Error(lookupErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		expiresAt := time.Time{}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"id":      user.ID,
			"email":   user.Email,
			"expires": expiresAt,
		})
	}
}
