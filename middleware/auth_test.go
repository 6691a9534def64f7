package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"main/config"
	"main/model"
	"main/services"
	"main/test/testutils"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	testutils.SetupTestEnvironment()
}

func newGuardedRouter(store *testutils.FakeSessionStore, heartbeat bool) (*gin.Engine, *services.SessionService) {
	cfg := config.SessionConfig{
		TTL:             24 * time.Hour,
		IdleMinutes:     15,
		SweepInterval:   10 * time.Minute,
		PendingLoginTTL: 300 * time.Second,
	}
	service := services.NewSessionService(store, services.NewMemoryPendingLoginStore(cfg.PendingLoginTTL), cfg)

	router := gin.New()
	guard := SessionGuard(service)
	if heartbeat {
		guard = HeartbeatGuard(service)
	}
	router.GET("/protected", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":       c.GetString("user_id"),
			"session_token": c.GetString("session_token"),
		})
	})
	return router, service
}

func seedGuardSession(store *testutils.FakeSessionStore, token, userID string, lastActivity time.Time) *model.Session {
	now := time.Now()
	session := &model.Session{
		Token:          token,
		UserID:         userID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		LastActivityAt: lastActivity,
	}
	store.Seed(session)
	return session
}

func issueToken(t *testing.T, userID, sessionToken string) string {
	t.Helper()
	user := &model.User{UserID: userID, Email: userID + "@example.com"}
	signed, err := services.GenerateAccessToken(user, "Member", "Staff", sessionToken)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return signed
}

func doGuardedRequest(router *gin.Engine, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return body.ErrorCode
}

func TestSessionGuardMissingToken(t *testing.T) {
	router, _ := newGuardedRouter(testutils.NewFakeSessionStore(), false)

	w := doGuardedRequest(router, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCodeOf(t, w); code != model.CodeInvalidToken {
		t.Errorf("error_code = %q, want %q", code, model.CodeInvalidToken)
	}
}

func TestSessionGuardGarbageToken(t *testing.T) {
	router, _ := newGuardedRouter(testutils.NewFakeSessionStore(), false)

	w := doGuardedRequest(router, "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCodeOf(t, w); code != model.CodeInvalidToken {
		t.Errorf("error_code = %q, want %q", code, model.CodeInvalidToken)
	}
}

func TestSessionGuardLiveSessionPassesAndBumps(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	stale := time.Now().Add(-10 * time.Minute)
	seedGuardSession(store, "tok-1", "jdoe", stale)

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	session, _ := store.GetSessionByToken("tok-1")
	if !session.LastActivityAt.After(stale) {
		t.Error("guarded request should count as activity")
	}
}

func TestSessionGuardUnknownSession(t *testing.T) {
	router, _ := newGuardedRouter(testutils.NewFakeSessionStore(), false)

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-missing"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCodeOf(t, w); code != model.CodeSessionNotFound {
		t.Errorf("error_code = %q, want %q", code, model.CodeSessionNotFound)
	}
}

func TestSessionGuardRevokedSession(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	session := seedGuardSession(store, "tok-1", "jdoe", time.Now())
	session.Revoked = true

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if code := errorCodeOf(t, w); code != model.CodeSessionRevoked {
		t.Errorf("error_code = %q, want %q", code, model.CodeSessionRevoked)
	}
}

func TestSessionGuardExpiredSession(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	session := seedGuardSession(store, "tok-1", "jdoe", time.Now())
	session.ExpiresAt = time.Now().Add(-time.Minute)

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if code := errorCodeOf(t, w); code != model.CodeSessionExpired {
		t.Errorf("error_code = %q, want %q", code, model.CodeSessionExpired)
	}
}

func TestSessionGuardIdleSessionRevoked(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	seedGuardSession(store, "tok-1", "jdoe", time.Now().Add(-20*time.Minute))

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCodeOf(t, w); code != model.CodeSessionIdleTimeout {
		t.Errorf("error_code = %q, want %q", code, model.CodeSessionIdleTimeout)
	}

	session, _ := store.GetSessionByToken("tok-1")
	if !session.Revoked {
		t.Error("idle session should be revoked on access")
	}
}

// Tokens without a session identifier resolve through the user's most recent
// session.
func TestSessionGuardLegacyToken(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	seedGuardSession(store, "tok-live", "jdoe", time.Now())

	w := doGuardedRequest(router, issueToken(t, "jdoe", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var body struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.SessionToken != "tok-live" {
		t.Errorf("resolved session = %q, want tok-live", body.SessionToken)
	}
}

// A legacy token whose only session has expired gets SESSION_EXPIRED, not
// SESSION_NOT_FOUND: the record still exists, it just ran out.
func TestSessionGuardLegacyTokenExpiredSession(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	session := seedGuardSession(store, "tok-old", "jdoe", time.Now().Add(-2*time.Hour))
	session.ExpiresAt = time.Now().Add(-time.Hour)

	w := doGuardedRequest(router, issueToken(t, "jdoe", ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCodeOf(t, w); code != model.CodeSessionExpired {
		t.Errorf("error_code = %q, want %q", code, model.CodeSessionExpired)
	}
}

// A store outage during resolution is not a credential problem: the guard
// answers 500 without any session-state error code.
func TestSessionGuardStoreOutage(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, false)

	seedGuardSession(store, "tok-1", "jdoe", time.Now())
	store.GetErr = errors.New("connection reset")

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (%s)", w.Code, w.Body.String())
	}
	if code := errorCodeOf(t, w); code != "" {
		t.Errorf("store outage must not carry a session-state code, got %q", code)
	}
}

// The heartbeat guard skips the idle check: an idle-but-live session still
// reaches the handler.
func TestHeartbeatGuardSkipsIdleCheck(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, true)

	stale := time.Now().Add(-20 * time.Minute)
	seedGuardSession(store, "tok-1", "jdoe", stale)

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	// And it does not bump activity itself
	session, _ := store.GetSessionByToken("tok-1")
	if !session.LastActivityAt.Equal(stale) {
		t.Error("heartbeat guard must not bump activity; that is the handler's job")
	}
}

func TestHeartbeatGuardStillRejectsRevoked(t *testing.T) {
	store := testutils.NewFakeSessionStore()
	router, _ := newGuardedRouter(store, true)

	session := seedGuardSession(store, "tok-1", "jdoe", time.Now())
	session.Revoked = true

	w := doGuardedRequest(router, issueToken(t, "jdoe", "tok-1"))
	if code := errorCodeOf(t, w); code != model.CodeSessionRevoked {
		t.Errorf("error_code = %q, want %q", code, model.CodeSessionRevoked)
	}
}
