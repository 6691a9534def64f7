package config

import (
	"time"

	"main/utils"
)

// SessionConfig is the timing surface of the session subsystem.
type SessionConfig struct {
	TTL             time.Duration // absolute session lifetime
	IdleMinutes     int           // inactivity window before revocation
	SweepInterval   time.Duration // background sweeper cadence
	PendingLoginTTL time.Duration // staged takeover entry lifetime
}

func LoadSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:             time.Duration(utils.GetEnvAsInt("SESSION_TTL_MINUTES", 1440)) * time.Minute,
		IdleMinutes:     utils.GetEnvAsInt("SESSION_IDLE_MINUTES", 15),
		SweepInterval:   time.Duration(utils.GetEnvAsInt("SESSION_SWEEP_INTERVAL_MINUTES", 10)) * time.Minute,
		PendingLoginTTL: time.Duration(utils.GetEnvAsInt("PENDING_LOGIN_TTL_SECONDS", 300)) * time.Second,
	}
}

// GoogleConfig holds the identity provider credentials.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func LoadGoogleConfig() GoogleConfig {
	return GoogleConfig{
		ClientID:     utils.GetEnvAsString("GOOGLE_CLIENT_ID", ""),
		ClientSecret: utils.GetEnvAsString("GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  utils.GetEnvAsString("GOOGLE_REDIRECT_URI", ""),
	}
}
