package authkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteDependencies carries the collaborators the session endpoints need.
type RouteDependencies struct {
	Tokens       *TokenService
	Metrics      MetricsRecorder
	Logger       *zap.Logger
	LoginLimiter gin.HandlerFunc
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MountAuthRoutes registers /auth/login, /auth/refresh, and /auth/logout.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, dependencies RouteDependencies) {
	tokens := dependencies.Tokens
	metrics := dependencies.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	loginHandlers := []gin.HandlerFunc{}
	if dependencies.LoginLimiter != nil {
		loginHandlers = append(loginHandlers, dependencies.LoginLimiter)
	}
	loginHandlers = append(loginHandlers, func(contextGin *gin.Context) {
		var inbound loginRequest
		if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.Email) == "" || inbound.Password == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		user, authenticated, authErr := tokens.Authenticate(contextGin, inbound.Email, inbound.Password)
		if authErr != nil {
			logger.Error("login lookup failed",
				zap.String("code", "auth.login.store_error"),
				zap.Error(authErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !authenticated {
			metrics.Increment(metricAuthLoginFailure)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}

		pair, issueErr := tokens.IssueTokenPair(contextGin, user)
		if issueErr != nil {
			logger.Error("token issuance failed",
				zap.String("code", "auth.login.issue_error"),
				zap.Uint("user_id", user.ID),
				zap.Error(issueErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		writeRefreshCookie(contextGin, configuration, pair)
		metrics.Increment(metricAuthLoginSuccess)
		contextGin.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken})
	})
	router.POST("/auth/login", loginHandlers...)

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		refreshCookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
		if cookieErr != nil || refreshCookie == nil || strings.TrimSpace(refreshCookie.Value) == "" {
			metrics.Increment(metricAuthRefreshFailure)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh_token_missing"})
			return
		}

		claims, verifyErr := tokens.VerifyRefreshToken(refreshCookie.Value)
		if verifyErr != nil {
			metrics.Increment(metricAuthRefreshFailure)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token"})
			return
		}

		pair, rotateErr := tokens.RotateRefreshToken(contextGin, claims.UserID, refreshCookie.Value)
		if rotateErr != nil {
			metrics.Increment(metricAuthRefreshFailure)
			if !errors.Is(rotateErr, ErrUnauthenticated) {
				logger.Error("refresh rotation failed",
					zap.String("code", "auth.refresh.store_error"),
					zap.Uint("user_id", claims.UserID),
					zap.Error(rotateErr))
			}
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token"})
			return
		}

		writeRefreshCookie(contextGin, configuration, pair)
		metrics.Increment(metricAuthRefreshSuccess)
		contextGin.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken})
	})

	router.POST("/auth/logout", RequireAccessToken(tokens), func(contextGin *gin.Context) {
		claims, ok := ClaimsFromContext(contextGin)
		if !ok {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if revokeErr := tokens.Revoke(contextGin, claims.UserID); revokeErr != nil {
			logger.Error("logout revoke failed",
				zap.String("code", "auth.logout.store_error"),
				zap.Uint("user_id", claims.UserID),
				zap.Error(revokeErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		clearRefreshCookie(contextGin, configuration)
		metrics.Increment(metricAuthLogoutSuccess)
		contextGin.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	})
}

func writeRefreshCookie(contextGin *gin.Context, configuration ServerConfig, pair TokenPair) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath(configuration),
		Domain:   configuration.CookieDomain,
		Expires:  pair.RefreshExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearRefreshCookie(contextGin *gin.Context, configuration ServerConfig) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath(configuration),
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func refreshCookiePath(configuration ServerConfig) string {
	if strings.TrimSpace(configuration.RefreshCookiePath) == "" {
		return "/auth"
	}
	return configuration.RefreshCookiePath
}
