package dto

import (
	"time"

	"main/model"
)

type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
}

type AuthCallbackRequest struct {
	Code string `json:"code" binding:"required"`
}

// AuthResponse is the login result. Success=false with HasActiveSession=true
// means the login collided with an existing session and a takeover decision
// is staged; the client may then call /complete-force-login.
type AuthResponse struct {
	Success             bool               `json:"success"`
	AccessToken         string             `json:"access_token,omitempty"`
	SessionToken        string             `json:"session_token,omitempty"`
	TokenType           string             `json:"token_type,omitempty"`
	UserID              string             `json:"user_id"`
	Email               string             `json:"email"`
	Name                string             `json:"name,omitempty"`
	Role                string             `json:"role,omitempty"`
	Position            string             `json:"position,omitempty"`
	RoleCode            string             `json:"role_code,omitempty"`
	PositionCode        string             `json:"position_code,omitempty"`
	HasActiveSession    bool               `json:"has_active_session"`
	ExistingSessionInfo *model.SessionInfo `json:"existing_session_info,omitempty"`
}

type CheckActiveSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type CheckActiveSessionResponse struct {
	HasActiveSession bool               `json:"has_active_session"`
	SessionInfo      *model.SessionInfo `json:"session_info,omitempty"`
}

type RevokeSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type RevokeSessionResponse struct {
	Success      bool  `json:"success"`
	RevokedCount int64 `json:"revoked_count"`
}

type CompleteForceLoginRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type HeartbeatResponse struct {
	LastActivityAt time.Time `json:"last_activity_at"`
}

type SessionStatsResponse struct {
	Active     int64   `json:"active"`
	Idle       int64   `json:"idle"`
	Total      int64   `json:"total"`
	CPUPercent float64 `json:"cpu_percent"`
}

type SessionCleanupResponse struct {
	RevokedCount int64 `json:"revoked_count"`
}
