package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func SetupIndexes(db *mongo.Database, sessionsColl, usersColl string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionsCollection := db.Collection(sessionsColl)
	usersCollection := db.Collection(usersColl)

	sessionIndexes := []mongo.IndexModel{
		// Token is the primary lookup key and a bearer identifier
		{
			Keys: bson.D{{Key: "token", Value: 1}},
			Options: options.Index().
				SetName("session_token_unique").
				SetUnique(true),
		},
		// Most-recent active session lookup per user
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().
				SetName("user_sessions_date").
				SetUnique(false),
		},
		// Idle sweep: find non-revoked records by activity timestamp
		{
			Keys: bson.D{
				{Key: "revoked", Value: 1},
				{Key: "last_activity_at", Value: 1},
			},
			Options: options.Index().
				SetName("session_idle_sweep"),
		},
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName("user_id_unique").
				SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("user_email_unique").
				SetUnique(true),
		},
	}

	_, err := sessionsCollection.Indexes().CreateMany(ctx, sessionIndexes)
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	_, err = usersCollection.Indexes().CreateMany(ctx, userIndexes)
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	log.Println("Successfully created all indexes")
	return nil
}
