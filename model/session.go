package model

import "time"

// Session represents one logged-in credential lifetime. The token doubles as
// the session identifier embedded in issued access tokens.
type Session struct {
	Token          string    `bson:"token" json:"token"`
	UserID         string    `bson:"user_id" json:"user_id"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt      time.Time `bson:"expires_at" json:"expires_at"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"`
	DeviceInfo     string    `bson:"device_info" json:"device_info"`
	IPAddress      string    `bson:"ip_address" json:"ip_address"`
	Revoked        bool      `bson:"revoked" json:"revoked"`
}

// SessionInfo is the public metadata shown to users when a login collides
// with an existing session.
type SessionInfo struct {
	DeviceInfo     string    `json:"device_info"`
	IPAddress      string    `json:"ip_address"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// SessionStats is a point-in-time classification of every session record.
// Active and idle are disjoint; revoked and expired records only count
// toward total.
type SessionStats struct {
	Active int64 `json:"active"`
	Idle   int64 `json:"idle"`
	Total  int64 `json:"total"`
}

// IdleThreshold returns the cutoff instant for idle evaluation. A session
// whose last activity is before this instant is idle. Both the request-time
// guard and the background sweeper derive their predicate from this function
// so the two thresholds cannot drift.
func IdleThreshold(now time.Time, idleMinutes int) time.Time {
	return now.Add(-time.Duration(idleMinutes) * time.Minute)
}

// IsExpired reports whether the session is past its absolute expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActive reports whether the session is neither revoked nor expired.
func (s *Session) IsActive(now time.Time) bool {
	return !s.Revoked && !s.IsExpired(now)
}

// IsIdle reports whether the session has seen no activity for longer than
// idleMinutes.
func (s *Session) IsIdle(idleMinutes int, now time.Time) bool {
	return s.LastActivityAt.Before(IdleThreshold(now, idleMinutes))
}

// Info returns the user-facing metadata for this session.
func (s *Session) Info() *SessionInfo {
	return &SessionInfo{
		DeviceInfo:     s.DeviceInfo,
		IPAddress:      s.IPAddress,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
	}
}
