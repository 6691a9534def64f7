package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"main/model"
	"main/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepo struct {
	MongoCollection *mongo.Collection
}

func GetSessionRepo(client *mongo.Client) *SessionRepo {
	dbName := os.Getenv("MONGO_DB")
	collectionName := os.Getenv("SESSIONS_COLLECTION")
	if collectionName == "" {
		collectionName = "sessions"
	}
	return &SessionRepo{
		MongoCollection: client.Database(dbName).Collection(collectionName),
	}
}

// CreateSession inserts a new session record. This is the mechanical insert
// step: the caller is responsible for having resolved the single-active-
// session decision first.
func (r *SessionRepo) CreateSession(session *model.Session) error {
	timer := utils.TrackDBOperation("insert", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if session == nil {
		utils.TrackError("database", "nil_session")
		return fmt.Errorf("session cannot be nil")
	}

	if session.Token == "" || session.UserID == "" {
		utils.TrackError("database", "invalid_session_data")
		return fmt.Errorf("invalid session data: missing required fields")
	}

	if _, err := r.MongoCollection.InsertOne(ctx, session); err != nil {
		utils.TrackError("database", "session_creation_failed")
		return fmt.Errorf("failed to create session in database: %w", err)
	}

	return nil
}

// GetSessionByToken returns the session for a token, or nil when no record
// exists.
func (r *SessionRepo) GetSessionByToken(token string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	if token == "" {
		utils.TrackError("database", "empty_session_token")
		return nil, fmt.Errorf("token cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var session model.Session
	err := r.MongoCollection.FindOne(ctx, bson.M{"token": token}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		utils.TrackError("database", "session_fetch_failed")
		return nil, fmt.Errorf("failed to fetch session from database: %w", err)
	}

	return &session, nil
}

// GetActiveSessionByUser returns the most recently created non-revoked,
// non-expired session for a user, or nil when none exists. This is also the
// resolution strategy for legacy credentials that carry no session token.
func (r *SessionRepo) GetActiveSessionByUser(userID string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	if userID == "" {
		utils.TrackError("database", "empty_user_id")
		return nil, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"created_at": -1})
	var session model.Session
	err := r.MongoCollection.FindOne(ctx,
		bson.M{
			"user_id":    userID,
			"revoked":    false,
			"expires_at": bson.M{"$gt": time.Now()},
		}, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		utils.TrackError("database", "session_fetch_failed")
		return nil, fmt.Errorf("failed to fetch active session: %w", err)
	}

	return &session, nil
}

// GetLatestNonRevokedSessionByUser returns the user's most recent non-revoked
// session regardless of expiry, or nil. The legacy credential path resolves
// through it so that a naturally expired session still reports as expired
// rather than missing.
func (r *SessionRepo) GetLatestNonRevokedSessionByUser(userID string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"created_at": -1})
	var session model.Session
	err := r.MongoCollection.FindOne(ctx,
		bson.M{"user_id": userID, "revoked": false}, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		utils.TrackError("database", "session_fetch_failed")
		return nil, fmt.Errorf("failed to fetch latest session: %w", err)
	}

	return &session, nil
}

// GetLatestRevokedSessionByUser returns the most recent revoked session for a
// user, or nil. The legacy credential path uses it to tell "revoked
// elsewhere" apart from "never logged in".
func (r *SessionRepo) GetLatestRevokedSessionByUser(userID string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", "sessions")
	defer timer.ObserveDuration()

	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"created_at": -1})
	var session model.Session
	err := r.MongoCollection.FindOne(ctx,
		bson.M{"user_id": userID, "revoked": true}, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		utils.TrackError("database", "session_fetch_failed")
		return nil, fmt.Errorf("failed to fetch revoked session: %w", err)
	}

	return &session, nil
}

// RevokeUserSessions sets revoked=true on every non-revoked session for the
// user and returns how many records changed. Already-revoked records are left
// untouched, so the call is idempotent.
func (r *SessionRepo) RevokeUserSessions(userID string) (int64, error) {
	timer := utils.TrackDBOperation("update", "sessions")
	defer timer.ObserveDuration()

	if userID == "" {
		return 0, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := r.MongoCollection.UpdateMany(
		ctx,
		bson.M{"user_id": userID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		utils.TrackError("database", "session_revoke_failed")
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	return result.ModifiedCount, nil
}

// RevokeSession marks a single session revoked. Revoking an already-revoked
// record is a no-op.
func (r *SessionRepo) RevokeSession(token string) error {
	timer := utils.TrackDBOperation("update", "sessions")
	defer timer.ObserveDuration()

	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := r.MongoCollection.UpdateOne(
		ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		utils.TrackError("database", "session_revoke_failed")
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if result.MatchedCount == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// UpdateLastActivity bumps the activity timestamp of a non-revoked session.
// Revoked records are never resurrected by an activity bump.
func (r *SessionRepo) UpdateLastActivity(token string, at time.Time) error {
	timer := utils.TrackDBOperation("update", "sessions")
	defer timer.ObserveDuration()

	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := r.MongoCollection.UpdateOne(
		ctx,
		bson.M{"token": token, "revoked": false},
		bson.M{"$set": bson.M{"last_activity_at": at}},
	)
	if err != nil {
		utils.TrackError("database", "session_activity_update_failed")
		return fmt.Errorf("failed to update session activity: %w", err)
	}

	if result.MatchedCount == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// RevokeIdleSessions bulk-revokes every non-revoked session whose last
// activity is older than the threshold and returns the count. Re-running
// after a partial failure only finds records still matching the predicate.
func (r *SessionRepo) RevokeIdleSessions(threshold time.Time) (int64, error) {
	timer := utils.TrackDBOperation("update", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := r.MongoCollection.UpdateMany(
		ctx,
		bson.M{"revoked": false, "last_activity_at": bson.M{"$lt": threshold}},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		utils.TrackError("database", "idle_sweep_failed")
		return 0, fmt.Errorf("failed to revoke idle sessions: %w", err)
	}

	return result.ModifiedCount, nil
}

// CountSessionStats classifies every record: active (not revoked, not
// expired, not idle), idle (not revoked, not expired, idle), and total
// regardless of state.
func (r *SessionRepo) CountSessionStats(idleThreshold time.Time) (model.SessionStats, error) {
	timer := utils.TrackDBOperation("count", "sessions")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	var stats model.SessionStats

	total, err := r.MongoCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, fmt.Errorf("failed to count sessions: %w", err)
	}

	active, err := r.MongoCollection.CountDocuments(ctx, bson.M{
		"revoked":          false,
		"expires_at":       bson.M{"$gt": now},
		"last_activity_at": bson.M{"$gte": idleThreshold},
	})
	if err != nil {
		return stats, fmt.Errorf("failed to count active sessions: %w", err)
	}

	idle, err := r.MongoCollection.CountDocuments(ctx, bson.M{
		"revoked":          false,
		"expires_at":       bson.M{"$gt": now},
		"last_activity_at": bson.M{"$lt": idleThreshold},
	})
	if err != nil {
		return stats, fmt.Errorf("failed to count idle sessions: %w", err)
	}

	stats.Total = total
	stats.Active = active
	stats.Idle = idle
	return stats, nil
}
