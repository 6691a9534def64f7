package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"main/config"
	"main/model"
	"main/utils"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// IdentityProvider abstracts the external login handshake: hand out a consent
// URL, then turn an authorization code into a verified identity. Handlers
// depend on this interface so tests can substitute a fake.
type IdentityProvider interface {
	AuthURL(state string) string
	FetchUser(ctx context.Context, code string) (email, name string, err error)
}

// GoogleProvider implements the handshake against Google's OAuth2 endpoints.
type GoogleProvider struct {
	oauth *oauth2.Config
}

func NewGoogleProvider(cfg config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (p *GoogleProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// FetchUser exchanges the authorization code and reads the user's profile.
// A rejected code maps to an invalid-token error; anything else (network,
// provider outage) maps to an external-service error so callers can tell a
// bad credential apart from a broken provider.
func (p *GoogleProvider) FetchUser(ctx context.Context, code string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			utils.TrackAuthAttempt("failure", "login")
			return "", "", fmt.Errorf("%w: code exchange rejected: %v", model.ErrInvalidToken, err)
		}
		utils.TrackError("external", "google_exchange_failed")
		return "", "", fmt.Errorf("%w: code exchange failed: %v", model.ErrExternalService, err)
	}

	client := p.oauth.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		utils.TrackError("external", "google_userinfo_failed")
		return "", "", fmt.Errorf("%w: userinfo request failed: %v", model.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		utils.TrackError("external", "google_userinfo_status")
		return "", "", fmt.Errorf("%w: userinfo returned status %d", model.ErrExternalService, resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		utils.TrackError("external", "google_userinfo_decode")
		return "", "", fmt.Errorf("%w: userinfo decode failed: %v", model.ErrExternalService, err)
	}
	if info.Email == "" {
		return "", "", fmt.Errorf("%w: userinfo response missing email", model.ErrExternalService)
	}

	return info.Email, info.Name, nil
}
