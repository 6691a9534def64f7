package model

import "time"

// PendingLogin is a fully-prepared login result staged while the user decides
// whether to take over an existing active session. The device and IP metadata
// belong to the original login request, not the takeover request.
type PendingLogin struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Position     string    `json:"position"`
	RoleCode     string    `json:"role_code"`
	PositionCode string    `json:"position_code"`
	AccessToken  string    `json:"access_token"`
	SessionToken string    `json:"session_token"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the staged entry has outlived the cache TTL.
func (p *PendingLogin) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.CreatedAt) > ttl
}
