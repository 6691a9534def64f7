package handler

import (
	"errors"

	"main/dto"
	"main/model"
	"main/services"
	"main/utils"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the session maintenance endpoints: heartbeat,
// stats, and the manual idle cleanup trigger.
type SessionHandler struct {
	Sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{Sessions: sessions}
}

// HeartbeatHandler records client liveness. It deliberately bypasses the idle
// evaluation of the full request guard: a heartbeat keeps a session alive, it
// never decides that the session already died of inactivity.
func (h *SessionHandler) HeartbeatHandler(c *gin.Context) {
	token := c.GetString("session_token")

	at, err := h.Sessions.UpdateHeartbeat(token)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSessionNotFound),
			errors.Is(err, model.ErrSessionRevoked),
			errors.Is(err, model.ErrSessionExpired):
			utils.UnauthorizedCode(c, model.ErrorCode(err), err.Error())
		default:
			utils.InternalError(c, "Failed to record heartbeat")
		}
		return
	}

	utils.Success(c, dto.HeartbeatResponse{LastActivityAt: at})
}

// SessionStatsHandler reports the active/idle/total session partition along
// with a CPU reading for quick capacity checks.
func (h *SessionHandler) SessionStatsHandler(c *gin.Context) {
	stats, err := h.Sessions.SessionStats()
	if err != nil {
		utils.InternalError(c, "Failed to compute session stats")
		return
	}

	cpuPercent := utils.GetCPUUsage()
	utils.CPUUsagePercent.Set(cpuPercent)

	utils.Success(c, dto.SessionStatsResponse{
		Active:     stats.Active,
		Idle:       stats.Idle,
		Total:      stats.Total,
		CPUPercent: cpuPercent,
	})
}

// SessionCleanupHandler triggers one idle sweep on demand, without waiting
// for the background cadence.
func (h *SessionHandler) SessionCleanupHandler(c *gin.Context) {
	count, err := h.Sessions.CleanupIdleSessions()
	if err != nil {
		utils.InternalError(c, "Failed to clean up idle sessions")
		return
	}

	utils.Success(c, dto.SessionCleanupResponse{RevokedCount: count})
}
