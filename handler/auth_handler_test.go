package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"main/config"
	"main/dto"
	"main/model"
	"main/services"
	"main/test/testutils"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	testutils.SetupTestEnvironment()
}

type fakeProvider struct {
	email string
	name  string
	err   error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/consent?state=" + state
}

func (f *fakeProvider) FetchUser(ctx context.Context, code string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.email, f.name, nil
}

type fakeDirectory struct {
	users map[string]*model.User
	err   error
}

func (f *fakeDirectory) FindUserByID(userID string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[userID], nil
}

type authFixture struct {
	store    *testutils.FakeSessionStore
	service  *services.SessionService
	provider *fakeProvider
	router   *gin.Engine
}

func newAuthFixture(provider *fakeProvider, users ...*model.User) *authFixture {
	cfg := config.SessionConfig{
		TTL:             24 * time.Hour,
		IdleMinutes:     15,
		SweepInterval:   10 * time.Minute,
		PendingLoginTTL: 300 * time.Second,
	}
	store := testutils.NewFakeSessionStore()
	service := services.NewSessionService(store, services.NewMemoryPendingLoginStore(cfg.PendingLoginTTL), cfg)

	directory := &fakeDirectory{users: make(map[string]*model.User)}
	for _, u := range users {
		directory.users[u.UserID] = u
	}

	h := NewAuthHandler(provider, usecase.NewUserService(directory), service)

	router := gin.New()
	router.GET("/api/auth/google/url", h.GoogleAuthURLHandler)
	router.POST("/api/auth/callback", h.AuthCallbackHandler)
	router.POST("/api/auth/check-active-session", h.CheckActiveSessionHandler)
	router.POST("/api/auth/revoke-session", h.RevokeSessionHandler)
	router.POST("/api/auth/complete-force-login", h.CompleteForceLoginHandler)

	return &authFixture{store: store, service: service, provider: provider, router: router}
}

func postJSON(router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode envelope %q: %v", w.Body.String(), err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode data %q: %v", envelope.Data, err)
	}
}

func activeUser() *model.User {
	return &model.User{
		UserID:       "jdoe",
		Email:        "jdoe@example.com",
		Name:         "J. Doe",
		Active:       true,
		RoleCode:     "MEMBER",
		PositionCode: "STAFF",
	}
}

func TestGoogleAuthURLHandler(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/url", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp dto.AuthURLResponse
	decodeData(t, w, &resp)
	if resp.AuthURL == "" {
		t.Error("auth_url should not be empty")
	}
}

func TestAuthCallbackFirstLogin(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com", name: "J. Doe"}, activeUser())

	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var resp dto.AuthResponse
	decodeData(t, w, &resp)

	if !resp.Success || resp.HasActiveSession {
		t.Errorf("first login should succeed without collision, got %+v", resp)
	}
	if resp.AccessToken == "" || resp.SessionToken == "" {
		t.Error("first login should return tokens")
	}
	if resp.UserID != "jdoe" || resp.Role != "Member" {
		t.Errorf("identity fields = %+v", resp)
	}

	session, _ := fx.store.GetSessionByToken(resp.SessionToken)
	if session == nil || session.Revoked {
		t.Fatal("a live session record should exist after first login")
	}
}

func TestAuthCallbackCollisionStagesTakeover(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com", name: "J. Doe"}, activeUser())

	// First login
	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})
	var first dto.AuthResponse
	decodeData(t, w, &first)

	// Second login collides
	w = postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var second dto.AuthResponse
	decodeData(t, w, &second)

	if second.Success || !second.HasActiveSession {
		t.Errorf("collision should report has_active_session, got %+v", second)
	}
	if second.AccessToken != "" || second.SessionToken != "" {
		t.Error("collision response must not leak the staged tokens")
	}
	if second.ExistingSessionInfo == nil {
		t.Fatal("collision response should describe the existing session")
	}

	// The first session is still live until the takeover is confirmed
	session, _ := fx.store.GetSessionByToken(first.SessionToken)
	if session == nil || session.Revoked {
		t.Error("existing session must survive an unconfirmed collision")
	}
}

func TestCompleteForceLogin(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com", name: "J. Doe"}, activeUser())

	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})
	var first dto.AuthResponse
	decodeData(t, w, &first)

	postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})

	w = postJSON(fx.router, "/api/auth/complete-force-login", dto.CompleteForceLoginRequest{UserID: "jdoe"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var resp dto.AuthResponse
	decodeData(t, w, &resp)
	if !resp.Success || resp.AccessToken == "" || resp.SessionToken == "" {
		t.Errorf("takeover should return the staged credentials, got %+v", resp)
	}

	old, _ := fx.store.GetSessionByToken(first.SessionToken)
	if old == nil || !old.Revoked {
		t.Error("old session should be revoked by the takeover")
	}
	current, _ := fx.store.GetSessionByToken(resp.SessionToken)
	if current == nil || current.Revoked {
		t.Error("staged session should be live after the takeover")
	}
}

func TestCompleteForceLoginExpiredWindow(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{}, activeUser())

	w := postJSON(fx.router, "/api/auth/complete-force-login", dto.CompleteForceLoginRequest{UserID: "jdoe"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (%s)", w.Code, w.Body.String())
	}

	var body struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ErrorCode != model.CodePendingLoginExpired {
		t.Errorf("error_code = %q, want %q", body.ErrorCode, model.CodePendingLoginExpired)
	}
}

func TestAuthCallbackUnregisteredUser(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "stranger@example.com"})

	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(fx.store.Sessions) != 0 {
		t.Error("rejected login must not create a session")
	}
}

func TestAuthCallbackInactiveUser(t *testing.T) {
	user := activeUser()
	user.Active = false
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com"}, user)

	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthCallbackRejectedCode(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{err: fmt.Errorf("%w: bad code", model.ErrInvalidToken)})

	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "bad-code"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthCallbackProviderDown(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{err: fmt.Errorf("%w: timeout", model.ErrExternalService)})

	w := postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "any-code"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}

	var body struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ErrorCode != model.CodeExternalService {
		t.Errorf("error_code = %q, want %q", body.ErrorCode, model.CodeExternalService)
	}
}

func TestAuthCallbackMissingCode(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{})

	w := postJSON(fx.router, "/api/auth/callback", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckActiveSessionHandler(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com"}, activeUser())

	w := postJSON(fx.router, "/api/auth/check-active-session", dto.CheckActiveSessionRequest{UserID: "jdoe"})
	var resp dto.CheckActiveSessionResponse
	decodeData(t, w, &resp)
	if resp.HasActiveSession {
		t.Error("no session should be reported before login")
	}

	postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})

	w = postJSON(fx.router, "/api/auth/check-active-session", dto.CheckActiveSessionRequest{UserID: "jdoe"})
	decodeData(t, w, &resp)
	if !resp.HasActiveSession || resp.SessionInfo == nil {
		t.Errorf("active session should be reported after login, got %+v", resp)
	}
}

func TestRevokeSessionHandler(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com"}, activeUser())

	postJSON(fx.router, "/api/auth/callback", dto.AuthCallbackRequest{Code: "good-code"})

	w := postJSON(fx.router, "/api/auth/revoke-session", dto.RevokeSessionRequest{UserID: "jdoe"})
	var resp dto.RevokeSessionResponse
	decodeData(t, w, &resp)
	if !resp.Success || resp.RevokedCount != 1 {
		t.Errorf("revoke response = %+v, want success with count 1", resp)
	}

	// Idempotent
	w = postJSON(fx.router, "/api/auth/revoke-session", dto.RevokeSessionRequest{UserID: "jdoe"})
	decodeData(t, w, &resp)
	if !resp.Success || resp.RevokedCount != 0 {
		t.Errorf("second revoke = %+v, want success with count 0", resp)
	}
}

func TestDeviceLabelStoredOnSession(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{email: "jdoe@example.com"}, activeUser())

	body, _ := json.Marshal(dto.AuthCallbackRequest{Code: "good-code"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	var resp dto.AuthResponse
	decodeData(t, w, &resp)

	session, _ := fx.store.GetSessionByToken(resp.SessionToken)
	if session == nil {
		t.Fatal("session should exist")
	}
	if session.DeviceInfo != utils.DeviceLabel(req.UserAgent()) {
		t.Errorf("device_info = %q", session.DeviceInfo)
	}
}
