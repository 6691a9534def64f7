package services

import (
	"log"
	"time"

	"main/config"
	"main/model"
	"main/utils"
)

// SessionStore is the persistence surface the session service needs. The
// mongo-backed repository satisfies it; tests substitute an in-memory fake.
type SessionStore interface {
	CreateSession(session *model.Session) error
	GetSessionByToken(token string) (*model.Session, error)
	GetActiveSessionByUser(userID string) (*model.Session, error)
	GetLatestNonRevokedSessionByUser(userID string) (*model.Session, error)
	GetLatestRevokedSessionByUser(userID string) (*model.Session, error)
	RevokeUserSessions(userID string) (int64, error)
	RevokeSession(token string) error
	UpdateLastActivity(token string, at time.Time) error
	RevokeIdleSessions(threshold time.Time) (int64, error)
	CountSessionStats(idleThreshold time.Time) (model.SessionStats, error)
}

// SessionService owns the single-active-session policy: at most one live
// session per user, takeover staged through the pending login store, idle
// sessions revoked lazily on access and in bulk by the sweeper.
type SessionService struct {
	Store   SessionStore
	Pending PendingLoginStore
	Config  config.SessionConfig
}

func NewSessionService(store SessionStore, pending PendingLoginStore, cfg config.SessionConfig) *SessionService {
	return &SessionService{
		Store:   store,
		Pending: pending,
		Config:  cfg,
	}
}

// CheckActiveSession reports the user's current live session, if any. This is
// a pure read over the revoked and expiry flags: an idle-but-unswept session
// still counts as active until the guard or the sweeper reclaims it. Store
// failures degrade to "no active session" so that a flaky lookup never blocks
// a login; the worst case is an extra session that the revoke-on-create path
// cleans up.
func (s *SessionService) CheckActiveSession(userID string) *model.Session {
	session, err := s.Store.GetActiveSessionByUser(userID)
	if err != nil {
		utils.TrackError("session", "active_check_failed")
		log.Printf("Active session check failed for user %s: %v", userID, err)
		return nil
	}
	return session
}

// CreateSession commits a new session record with a full lifetime and a
// fresh activity timestamp.
func (s *SessionService) CreateSession(userID, token, deviceInfo, ipAddress string) (*model.Session, error) {
	now := time.Now()
	session := &model.Session{
		Token:          token,
		UserID:         userID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.Config.TTL),
		LastActivityAt: now,
		DeviceInfo:     deviceInfo,
		IPAddress:      ipAddress,
		Revoked:        false,
	}

	if err := s.Store.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// RevokePreviousSessions revokes every live session the user still holds and
// returns how many records changed.
func (s *SessionService) RevokePreviousSessions(userID string) (int64, error) {
	count, err := s.Store.RevokeUserSessions(userID)
	if err != nil {
		utils.TrackError("session", "revoke_failed")
		return 0, err
	}
	if count > 0 {
		utils.TrackSessionRevoked("takeover", count)
	}
	return count, nil
}

// StageForTakeover parks a validated login while the user decides whether to
// displace their existing session. The staged entry's clock starts now, not
// at provider exchange time.
func (s *SessionService) StageForTakeover(entry *model.PendingLogin) error {
	entry.CreatedAt = time.Now()
	return s.Pending.Save(entry.UserID, entry)
}

// CompleteTakeover consumes a staged login: revoke whatever the user still
// holds, commit the staged session, then drop the pending entry. A missing or
// expired entry means the takeover window closed and the user must log in
// again.
func (s *SessionService) CompleteTakeover(userID string) (*model.PendingLogin, *model.Session, error) {
	entry, err := s.Pending.Get(userID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, model.ErrPendingLoginExpired
	}

	if _, err := s.RevokePreviousSessions(userID); err != nil {
		return nil, nil, err
	}

	session, err := s.CreateSession(userID, entry.SessionToken, entry.DeviceInfo, entry.IPAddress)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.Pending.Remove(userID); err != nil {
		// The takeover already committed; a dangling entry just ages out.
		log.Printf("Failed to remove consumed pending login for user %s: %v", userID, err)
	}

	return entry, session, nil
}

// UpdateHeartbeat bumps the activity timestamp of a live session and returns
// the new timestamp. Unlike the full request guard it does not evaluate the
// idle window: a heartbeat arriving after the session was swept fails with
// not-found or revoked instead.
func (s *SessionService) UpdateHeartbeat(token string) (time.Time, error) {
	session, err := s.Store.GetSessionByToken(token)
	if err != nil {
		return time.Time{}, err
	}
	if session == nil {
		return time.Time{}, model.ErrSessionNotFound
	}
	if session.Revoked {
		return time.Time{}, model.ErrSessionRevoked
	}

	now := time.Now()
	if session.IsExpired(now) {
		return time.Time{}, model.ErrSessionExpired
	}

	if err := s.Store.UpdateLastActivity(token, now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// ResolveSession maps a credential's session claim to its record. An empty
// token is the legacy credential shape from before sessions carried their own
// identifier; those resolve through the user's most recent session instead.
func (s *SessionService) ResolveSession(userID, sessionToken string) (*model.Session, error) {
	if sessionToken != "" {
		session, err := s.Store.GetSessionByToken(sessionToken)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, model.ErrSessionNotFound
		}
		if session.Revoked {
			return nil, model.ErrSessionRevoked
		}
		return session, nil
	}

	// Resolve on the revoked flag alone so a naturally expired session is
	// returned to the caller, whose expiry check then reports it as expired
	// rather than missing.
	session, err := s.Store.GetLatestNonRevokedSessionByUser(userID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	// No session left standing. If the user's latest session was revoked, report
	// that so the client can explain the displacement.
	revoked, err := s.Store.GetLatestRevokedSessionByUser(userID)
	if err != nil {
		return nil, err
	}
	if revoked != nil {
		return nil, model.ErrSessionRevoked
	}
	return nil, model.ErrSessionNotFound
}

// Touch bumps the activity timestamp, tolerating records that disappeared
// between resolution and the write.
func (s *SessionService) Touch(token string) {
	if err := s.Store.UpdateLastActivity(token, time.Now()); err != nil {
		log.Printf("Failed to bump session activity: %v", err)
	}
}

// RevokeSession marks a single session revoked, counting the revocation
// under the given cause.
func (s *SessionService) RevokeSession(token, cause string) error {
	if err := s.Store.RevokeSession(token); err != nil {
		return err
	}
	utils.TrackSessionRevoked(cause, 1)
	return nil
}

// SessionStats classifies every stored session as active, idle, or neither.
func (s *SessionService) SessionStats() (model.SessionStats, error) {
	threshold := model.IdleThreshold(time.Now(), s.Config.IdleMinutes)
	stats, err := s.Store.CountSessionStats(threshold)
	if err != nil {
		utils.TrackError("session", "stats_failed")
		return stats, err
	}
	utils.UpdateSessionGauges(stats.Active, stats.Idle)
	return stats, nil
}

// CleanupIdleSessions bulk-revokes every session idle past the configured
// window and returns the count.
func (s *SessionService) CleanupIdleSessions() (int64, error) {
	threshold := model.IdleThreshold(time.Now(), s.Config.IdleMinutes)
	count, err := s.Store.RevokeIdleSessions(threshold)
	if err != nil {
		utils.TrackError("session", "idle_sweep_failed")
		return 0, err
	}
	if count > 0 {
		utils.TrackSessionRevoked("idle_sweep", count)
	}
	return count, nil
}
