package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"main/model"
	"main/utils"

	"github.com/redis/go-redis/v9"
)

// PendingLoginStore bridges the gap between "credential the identity provider
// would accept" and "credential actually committed as a session" while the
// user decides whether to take over an existing session. Get never consumes;
// Remove is the explicit consumption step.
type PendingLoginStore interface {
	Save(userID string, entry *model.PendingLogin) error
	Get(userID string) (*model.PendingLogin, error)
	Remove(userID string) (bool, error)
}

// MemoryPendingLoginStore is the process-local default: a mutex-guarded map
// with a fixed TTL and a lazy sweep on every access. In a horizontally scaled
// deployment use the redis-backed store instead, otherwise a takeover request
// landing on a different process reports a spurious expiry.
type MemoryPendingLoginStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*model.PendingLogin
}

func NewMemoryPendingLoginStore(ttl time.Duration) *MemoryPendingLoginStore {
	return &MemoryPendingLoginStore{
		ttl:     ttl,
		entries: make(map[string]*model.PendingLogin),
	}
}

// Save evicts expired entries, then overwrites any existing entry for the
// user. A fresh login collision always supersedes a prior pending entry.
func (s *MemoryPendingLoginStore) Save(userID string, entry *model.PendingLogin) error {
	if userID == "" || entry == nil {
		return fmt.Errorf("invalid pending login entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpired()
	s.entries[userID] = entry
	return nil
}

// Get returns the staged entry without consuming it, or nil when absent or
// past TTL (expired entries are evicted on the spot).
func (s *MemoryPendingLoginStore) Get(userID string) (*model.PendingLogin, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpired()

	entry, ok := s.entries[userID]
	if !ok {
		return nil, nil
	}
	if entry.Expired(s.ttl, time.Now()) {
		delete(s.entries, userID)
		return nil, nil
	}
	return entry, nil
}

// Remove deletes the entry and reports whether one existed.
func (s *MemoryPendingLoginStore) Remove(userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[userID]; ok {
		delete(s.entries, userID)
		return true, nil
	}
	return false, nil
}

// cleanupExpired must be called with the lock held.
func (s *MemoryPendingLoginStore) cleanupExpired() {
	now := time.Now()
	expired := 0
	for key, entry := range s.entries {
		if entry.Expired(s.ttl, now) {
			delete(s.entries, key)
			expired++
		}
	}
	if expired > 0 {
		log.Printf("Evicted %d expired pending logins", expired)
	}
}

// RedisPendingLoginStore keeps staged logins in a shared TTL-capable store so
// a takeover can complete on any process. Redis expires entries natively.
type RedisPendingLoginStore struct {
	client    *redis.Client
	ttl       time.Duration
	cacheLock sync.RWMutex
}

func NewRedisPendingLoginStore(redisURL string, ttl time.Duration) (*RedisPendingLoginStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &RedisPendingLoginStore{client: client, ttl: ttl}, nil
}

func pendingLoginKey(userID string) string {
	return fmt.Sprintf("pending_login:%s", userID)
}

func (s *RedisPendingLoginStore) Save(userID string, entry *model.PendingLogin) error {
	if userID == "" || entry == nil {
		return fmt.Errorf("invalid pending login entry")
	}

	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal pending login: %v", err)
	}

	ctx := context.Background()
	if err := s.client.Set(ctx, pendingLoginKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache pending login: %v", err)
	}

	return nil
}

func (s *RedisPendingLoginStore) Get(userID string) (*model.PendingLogin, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()

	ctx := context.Background()
	data, err := s.client.Get(ctx, pendingLoginKey(userID)).Bytes()
	if err == redis.Nil {
		utils.TrackCacheOperation("pending_login", false)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending login from cache: %v", err)
	}

	var entry model.PendingLogin
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending login: %v", err)
	}

	utils.TrackCacheOperation("pending_login", true)
	return &entry, nil
}

func (s *RedisPendingLoginStore) Remove(userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID cannot be empty")
	}

	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	ctx := context.Background()
	deleted, err := s.client.Del(ctx, pendingLoginKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete pending login from cache: %v", err)
	}

	return deleted > 0, nil
}

// Close closes the Redis connection
func (s *RedisPendingLoginStore) Close() error {
	return s.client.Close()
}
