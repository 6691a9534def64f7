package model

import "errors"

// Session-state errors are terminal to the current request and surfaced with
// a specific code so the client can distinguish, e.g., "idle timeout" from
// "revoked elsewhere".
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionRevoked      = errors.New("session revoked")
	ErrSessionExpired      = errors.New("session expired")
	ErrSessionIdleTimeout  = errors.New("session idle timeout")
	ErrPendingLoginExpired = errors.New("pending login missing or expired")
	ErrExternalService     = errors.New("external service error")
	ErrInvalidToken        = errors.New("invalid token")
)

// Wire-level error codes carried in 401 responses.
const (
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionRevoked      = "SESSION_REVOKED"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeSessionIdleTimeout  = "SESSION_IDLE_TIMEOUT"
	CodePendingLoginExpired = "PENDING_LOGIN_EXPIRED"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	CodeInvalidToken        = "UNAUTHORIZED_TOKEN"
)

// ErrorCode maps a session-state error to its wire code. Unknown errors map
// to the generic token code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrSessionRevoked):
		return CodeSessionRevoked
	case errors.Is(err, ErrSessionExpired):
		return CodeSessionExpired
	case errors.Is(err, ErrSessionIdleTimeout):
		return CodeSessionIdleTimeout
	case errors.Is(err, ErrPendingLoginExpired):
		return CodePendingLoginExpired
	case errors.Is(err, ErrExternalService):
		return CodeExternalService
	default:
		return CodeInvalidToken
	}
}
