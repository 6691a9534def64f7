package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"main/model"
	"main/services"
	"main/utils"

	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// rejectSessionError rejects the request with the session-state taxonomy. A
// store failure is not a credential problem: those surface as a 500 with a
// generic body so the caller is not told to log in again over a database
// outage.
func rejectSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrSessionNotFound),
		errors.Is(err, model.ErrSessionRevoked),
		errors.Is(err, model.ErrSessionExpired),
		errors.Is(err, model.ErrSessionIdleTimeout),
		errors.Is(err, model.ErrInvalidToken):
		utils.TrackError("auth", model.ErrorCode(err))
		utils.UnauthorizedCode(c, model.ErrorCode(err), err.Error())
	default:
		utils.TrackError("auth", "session_resolve_failed")
		log.Printf("Session resolution failed: %v", err)
		utils.InternalError(c, "Failed to resolve session")
	}
	c.Abort()
}

// SessionGuard authenticates a request end to end: parse the access token,
// resolve its session, reject revoked/expired/idle sessions, then count the
// request as activity. The idle check happens before the activity bump, so a
// request arriving after the idle window cannot revive the session it killed.
func SessionGuard(service *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedCode(c, model.CodeInvalidToken, "Missing or invalid token")
			c.Abort()
			return
		}

		claims, err := services.ParseAccessToken(tokenString)
		if err != nil {
			rejectSessionError(c, err)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			utils.UnauthorizedCode(c, model.CodeInvalidToken, "Invalid user ID in token")
			c.Abort()
			return
		}

		// Absent on tokens minted before sessions carried identifiers;
		// those resolve through the user's most recent session.
		sessionToken, _ := claims["session_id"].(string)

		session, err := service.ResolveSession(userID, sessionToken)
		if err != nil {
			rejectSessionError(c, err)
			return
		}

		now := time.Now()
		if session.IsExpired(now) {
			rejectSessionError(c, model.ErrSessionExpired)
			return
		}

		if session.IsIdle(service.Config.IdleMinutes, now) {
			if err := service.RevokeSession(session.Token, "idle_guard"); err != nil && !errors.Is(err, model.ErrSessionNotFound) {
				utils.TrackError("auth", "idle_revoke_failed")
			}
			rejectSessionError(c, model.ErrSessionIdleTimeout)
			return
		}

		service.Touch(session.Token)

		c.Set("user_id", userID)
		c.Set("session_token", session.Token)
		c.Set("claims", claims)
		c.Next()
	}
}

// HeartbeatGuard is the lighter variant for the heartbeat endpoint: it
// authenticates the token and locates the session but performs no idle check
// and no activity bump. The handler owns the bump, so a single code path
// decides whether the heartbeat counts.
func HeartbeatGuard(service *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedCode(c, model.CodeInvalidToken, "Missing or invalid token")
			c.Abort()
			return
		}

		claims, err := services.ParseAccessToken(tokenString)
		if err != nil {
			rejectSessionError(c, err)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			utils.UnauthorizedCode(c, model.CodeInvalidToken, "Invalid user ID in token")
			c.Abort()
			return
		}

		sessionToken, _ := claims["session_id"].(string)

		session, err := service.ResolveSession(userID, sessionToken)
		if err != nil {
			rejectSessionError(c, err)
			return
		}

		if session.IsExpired(time.Now()) {
			rejectSessionError(c, model.ErrSessionExpired)
			return
		}

		c.Set("user_id", userID)
		c.Set("session_token", session.Token)
		c.Next()
	}
}
