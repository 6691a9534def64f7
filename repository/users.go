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
)

type UserRepo struct {
	MongoCollection *mongo.Collection
}

func GetUserRepo(client *mongo.Client) *UserRepo {
	dbName := os.Getenv("MONGO_DB")
	collectionName := os.Getenv("USERS_COLLECTION")
	if collectionName == "" {
		collectionName = "users"
	}
	return &UserRepo{
		MongoCollection: client.Database(dbName).Collection(collectionName),
	}
}

// FindUserByID looks up a directory entry by user id. Returns nil when the
// user is not registered.
func (r *UserRepo) FindUserByID(userID string) (*model.User, error) {
	timer := utils.TrackDBOperation("find", "users")
	defer timer.ObserveDuration()

	if userID == "" {
		utils.TrackError("database", "empty_user_id")
		return nil, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user model.User
	err := r.MongoCollection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		utils.TrackError("database", "user_fetch_failed")
		return nil, fmt.Errorf("failed to fetch user from database: %w", err)
	}

	return &user, nil
}

// AddUser registers a directory entry. Used by provisioning tooling and test
// setup; login never creates users.
func (r *UserRepo) AddUser(user *model.User) error {
	timer := utils.TrackDBOperation("insert", "users")
	defer timer.ObserveDuration()

	if user == nil || user.UserID == "" || user.Email == "" {
		utils.TrackError("database", "invalid_user_data")
		return fmt.Errorf("invalid user data: missing required fields")
	}

	if err := utils.Validate.Struct(user); err != nil {
		utils.TrackError("database", "invalid_user_data")
		return fmt.Errorf("invalid user data: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := r.MongoCollection.InsertOne(ctx, user); err != nil {
		utils.TrackError("database", "user_creation_failed")
		return fmt.Errorf("failed to add user to database: %w", err)
	}

	return nil
}
