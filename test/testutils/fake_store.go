package testutils

import (
	"fmt"
	"sync"
	"time"

	"main/model"
)

// FakeSessionStore is an in-memory stand-in for the mongo-backed session
// repository. Error fields let tests force individual operations to fail.
type FakeSessionStore struct {
	mu       sync.Mutex
	Sessions map[string]*model.Session

	CreateErr error
	GetErr    error
	RevokeErr error
	UpdateErr error
	SweepErr  error
	StatsErr  error
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{Sessions: make(map[string]*model.Session)}
}

// SetSweepErr toggles the sweep failure under the store lock, safe to call
// while a background sweeper is running.
func (f *FakeSessionStore) SetSweepErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SweepErr = err
}

// Seed inserts a session directly, bypassing CreateSession validation.
func (f *FakeSessionStore) Seed(session *model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sessions[session.Token] = session
}

func (f *FakeSessionStore) CreateSession(session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if _, exists := f.Sessions[session.Token]; exists {
		return fmt.Errorf("duplicate session token %s", session.Token)
	}
	copied := *session
	f.Sessions[session.Token] = &copied
	return nil
}

func (f *FakeSessionStore) GetSessionByToken(token string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	session, ok := f.Sessions[token]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *FakeSessionStore) GetActiveSessionByUser(userID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	now := time.Now()
	var latest *model.Session
	for _, session := range f.Sessions {
		if session.UserID != userID || session.Revoked || session.IsExpired(now) {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *FakeSessionStore) GetLatestNonRevokedSessionByUser(userID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	var latest *model.Session
	for _, session := range f.Sessions {
		if session.UserID != userID || session.Revoked {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *FakeSessionStore) GetLatestRevokedSessionByUser(userID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	var latest *model.Session
	for _, session := range f.Sessions {
		if session.UserID != userID || !session.Revoked {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *FakeSessionStore) RevokeUserSessions(userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		return 0, f.RevokeErr
	}
	var count int64
	for _, session := range f.Sessions {
		if session.UserID == userID && !session.Revoked {
			session.Revoked = true
			count++
		}
	}
	return count, nil
}

func (f *FakeSessionStore) RevokeSession(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		return f.RevokeErr
	}
	session, ok := f.Sessions[token]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.Revoked = true
	return nil
}

func (f *FakeSessionStore) UpdateLastActivity(token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	session, ok := f.Sessions[token]
	if !ok || session.Revoked {
		return model.ErrSessionNotFound
	}
	session.LastActivityAt = at
	return nil
}

func (f *FakeSessionStore) RevokeIdleSessions(threshold time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SweepErr != nil {
		return 0, f.SweepErr
	}
	var count int64
	for _, session := range f.Sessions {
		if !session.Revoked && session.LastActivityAt.Before(threshold) {
			session.Revoked = true
			count++
		}
	}
	return count, nil
}

func (f *FakeSessionStore) CountSessionStats(idleThreshold time.Time) (model.SessionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats model.SessionStats
	if f.StatsErr != nil {
		return stats, f.StatsErr
	}
	now := time.Now()
	for _, session := range f.Sessions {
		stats.Total++
		if session.Revoked || session.IsExpired(now) {
			continue
		}
		if session.LastActivityAt.Before(idleThreshold) {
			stats.Idle++
		} else {
			stats.Active++
		}
	}
	return stats, nil
}
