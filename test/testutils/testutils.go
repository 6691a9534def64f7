package testutils

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"main/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var envOnce sync.Once

// SetupTestEnvironment puts the process into test mode with deterministic
// defaults so package tests never depend on a developer's .env file.
func SetupTestEnvironment() {
	envOnce.Do(func() {
		os.Setenv("GO_ENV", "test")
		if os.Getenv("JWT_SECRET_KEY") == "" {
			os.Setenv("JWT_SECRET_KEY", "test_secret_key")
		}
		if os.Getenv("JWT_EXPIRATION_TIME") == "" {
			os.Setenv("JWT_EXPIRATION_TIME", "3600")
		}
		if os.Getenv("MONGO_DB") == "" {
			os.Setenv("MONGO_DB", "oneonone_test")
		}

		utils.InitValidator()
		utils.InitJWT()
	})
}

// SetupTestDB connects to a local MongoDB and returns the client plus a
// cleanup function that drops the test database. Tests that need a real
// database call t.Skip when none is reachable.
func SetupTestDB(t *testing.T) (*mongo.Client, func()) {
	t.Helper()
	SetupTestEnvironment()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable at %s: %v", uri, err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		dbName := os.Getenv("MONGO_DB")
		if dbName != "" {
			if err := client.Database(dbName).Drop(ctx); err != nil {
				t.Logf("Warning: Failed to drop test database %s: %v", dbName, err)
			}
		}

		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Warning: Failed to disconnect: %v", err)
		}
	}

	return client, cleanup
}
