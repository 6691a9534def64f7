package handler

import (
	"errors"
	"log"

	"main/dto"
	"main/model"
	"main/services"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler wires the identity provider, user directory, and session policy
// into the login endpoints.
type AuthHandler struct {
	Provider IdentityProvider
	Users    *usecase.UserService
	Sessions *services.SessionService
}

// IdentityProvider mirrors services.IdentityProvider so handler tests can
// substitute a fake without touching the real provider.
type IdentityProvider = services.IdentityProvider

func NewAuthHandler(provider IdentityProvider, users *usecase.UserService, sessions *services.SessionService) *AuthHandler {
	return &AuthHandler{
		Provider: provider,
		Users:    users,
		Sessions: sessions,
	}
}

// GoogleAuthURLHandler hands the client the provider consent URL.
func (h *AuthHandler) GoogleAuthURLHandler(c *gin.Context) {
	state := uuid.New().String()
	utils.Success(c, dto.AuthURLResponse{AuthURL: h.Provider.AuthURL(state)})
}

// AuthCallbackHandler completes the provider handshake and applies the
// single-active-session policy. When the login collides with an existing
// session the prepared credentials are staged instead of committed and the
// client is shown the existing session's metadata.
func (h *AuthHandler) AuthCallbackHandler(c *gin.Context) {
	var req dto.AuthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Authorization code is required")
		return
	}

	email, name, err := h.Provider.FetchUser(c.Request.Context(), req.Code)
	if err != nil {
		if errors.Is(err, model.ErrExternalService) {
			utils.BadGateway(c, model.CodeExternalService, "Identity provider is unavailable")
			return
		}
		utils.TrackAuthAttempt("failure", "login")
		utils.UnauthorizedCode(c, model.CodeInvalidToken, "Authorization code was rejected")
		return
	}

	user, err := h.Users.ResolveLogin(email)
	if err != nil {
		utils.InternalError(c, "Failed to look up user")
		return
	}
	if user == nil {
		utils.TrackAuthAttempt("failure", "login")
		utils.Unauthorized(c, "User is not registered or has been deactivated")
		return
	}
	if name == "" {
		name = user.Name
	}

	roleName := usecase.RoleName(user.RoleCode)
	positionName := usecase.PositionName(user.PositionCode)

	sessionToken := services.GenerateSessionToken()
	accessToken, err := services.GenerateAccessToken(user, roleName, positionName, sessionToken)
	if err != nil {
		utils.TrackError("auth", "token_generation_failed")
		utils.InternalError(c, "Failed to issue access token")
		return
	}

	deviceInfo := utils.DeviceLabel(c.Request.UserAgent())
	ipAddress := c.ClientIP()

	if existing := h.Sessions.CheckActiveSession(user.UserID); existing != nil {
		entry := &model.PendingLogin{
			UserID:       user.UserID,
			Email:        user.Email,
			Name:         name,
			Role:         roleName,
			Position:     positionName,
			RoleCode:     user.RoleCode,
			PositionCode: user.PositionCode,
			AccessToken:  accessToken,
			SessionToken: sessionToken,
			DeviceInfo:   deviceInfo,
			IPAddress:    ipAddress,
		}
		if err := h.Sessions.StageForTakeover(entry); err != nil {
			log.Printf("Failed to stage pending login for user %s: %v", user.UserID, err)
			utils.InternalError(c, "Failed to stage login")
			return
		}

		utils.Success(c, dto.AuthResponse{
			Success:             false,
			UserID:              user.UserID,
			Email:               user.Email,
			Name:                name,
			Role:                roleName,
			Position:            positionName,
			RoleCode:            user.RoleCode,
			PositionCode:        user.PositionCode,
			HasActiveSession:    true,
			ExistingSessionInfo: existing.Info(),
		})
		return
	}

	if _, err := h.Sessions.CreateSession(user.UserID, sessionToken, deviceInfo, ipAddress); err != nil {
		utils.InternalError(c, "Failed to create session")
		return
	}

	utils.TrackAuthAttempt("success", "login")
	utils.Success(c, dto.AuthResponse{
		Success:          true,
		AccessToken:      accessToken,
		SessionToken:     sessionToken,
		TokenType:        "Bearer",
		UserID:           user.UserID,
		Email:            user.Email,
		Name:             name,
		Role:             roleName,
		Position:         positionName,
		RoleCode:         user.RoleCode,
		PositionCode:     user.PositionCode,
		HasActiveSession: false,
	})
}

// CheckActiveSessionHandler reports whether the user currently holds a live
// session, with its metadata when they do.
func (h *AuthHandler) CheckActiveSessionHandler(c *gin.Context) {
	var req dto.CheckActiveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "user_id is required")
		return
	}

	session := h.Sessions.CheckActiveSession(req.UserID)
	resp := dto.CheckActiveSessionResponse{}
	if session != nil {
		resp.HasActiveSession = true
		resp.SessionInfo = session.Info()
	}
	utils.Success(c, resp)
}

// RevokeSessionHandler revokes every live session the user holds. Idempotent:
// revoking a user with no live sessions succeeds with a zero count.
func (h *AuthHandler) RevokeSessionHandler(c *gin.Context) {
	var req dto.RevokeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "user_id is required")
		return
	}

	count, err := h.Sessions.RevokePreviousSessions(req.UserID)
	if err != nil {
		utils.InternalError(c, "Failed to revoke sessions")
		return
	}

	utils.Success(c, dto.RevokeSessionResponse{Success: true, RevokedCount: count})
}

// CompleteForceLoginHandler consumes a staged login: the user confirmed the
// takeover, so the old session is revoked and the staged credentials become
// the live session. A closed takeover window means logging in from scratch.
func (h *AuthHandler) CompleteForceLoginHandler(c *gin.Context) {
	var req dto.CompleteForceLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "user_id is required")
		return
	}

	entry, session, err := h.Sessions.CompleteTakeover(req.UserID)
	if err != nil {
		if errors.Is(err, model.ErrPendingLoginExpired) {
			utils.TrackAuthAttempt("failure", "takeover")
			utils.UnauthorizedCode(c, model.CodePendingLoginExpired, "Login confirmation window has expired, please log in again")
			return
		}
		utils.InternalError(c, "Failed to complete login")
		return
	}

	utils.TrackAuthAttempt("success", "takeover")
	utils.Success(c, dto.AuthResponse{
		Success:          true,
		AccessToken:      entry.AccessToken,
		SessionToken:     session.Token,
		TokenType:        "Bearer",
		UserID:           entry.UserID,
		Email:            entry.Email,
		Name:             entry.Name,
		Role:             entry.Role,
		Position:         entry.Position,
		RoleCode:         entry.RoleCode,
		PositionCode:     entry.PositionCode,
		HasActiveSession: false,
	})
}

// LogoutHandler revokes the caller's own session.
func (h *AuthHandler) LogoutHandler(c *gin.Context) {
	token := c.GetString("session_token")
	if token == "" {
		utils.UnauthorizedCode(c, model.CodeSessionNotFound, "No session to log out")
		return
	}

	if err := h.Sessions.RevokeSession(token, "logout"); err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		utils.InternalError(c, "Failed to log out")
		return
	}

	utils.Success(c, gin.H{"message": "Logged out successfully"})
}

// MeHandler returns the authenticated caller's identity as carried by their
// access token.
func (h *AuthHandler) MeHandler(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.Users.UsersRepo.FindUserByID(userID)
	if err != nil {
		utils.InternalError(c, "Failed to look up user")
		return
	}
	if user == nil {
		utils.NotFound(c, "User not found")
		return
	}

	utils.Success(c, gin.H{
		"user_id":       user.UserID,
		"email":         user.Email,
		"name":          user.Name,
		"role":          usecase.RoleName(user.RoleCode),
		"position":      usecase.PositionName(user.PositionCode),
		"role_code":     user.RoleCode,
		"position_code": user.PositionCode,
	})
}
