package repository

import (
	"os"
	"testing"
	"time"

	"main/model"
	"main/test/testutils"
)

func TestUserRepoAddAndFind(t *testing.T) {
	client, cleanup := testutils.SetupTestDB(t)
	defer cleanup()
	os.Setenv("USERS_COLLECTION", "users")
	repo := GetUserRepo(client)

	user := &model.User{
		UserID:       "jdoe",
		Email:        "jdoe@example.com",
		Name:         "J. Doe",
		Active:       true,
		RoleCode:     "MEMBER",
		PositionCode: "STAFF",
		CreatedAt:    time.Now(),
	}
	if err := repo.AddUser(user); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	got, err := repo.FindUserByID("jdoe")
	if err != nil {
		t.Fatalf("FindUserByID failed: %v", err)
	}
	if got == nil || got.Email != "jdoe@example.com" || !got.Active {
		t.Errorf("got %+v, want the stored user", got)
	}

	missing, err := repo.FindUserByID("stranger")
	if err != nil {
		t.Fatalf("FindUserByID failed: %v", err)
	}
	if missing != nil {
		t.Error("unknown user should return nil, nil")
	}
}

func TestUserRepoRejectsInvalidData(t *testing.T) {
	client, cleanup := testutils.SetupTestDB(t)
	defer cleanup()
	repo := GetUserRepo(client)

	if err := repo.AddUser(nil); err == nil {
		t.Error("AddUser(nil) should fail")
	}
	if err := repo.AddUser(&model.User{Email: "x@example.com"}); err == nil {
		t.Error("AddUser without user_id should fail")
	}
	if _, err := repo.FindUserByID(""); err == nil {
		t.Error("FindUserByID with empty id should fail")
	}
}

// Validation runs before the insert, so malformed directory codes fail without
// a database round trip.
func TestUserRepoRejectsBadDirectoryCodes(t *testing.T) {
	testutils.SetupTestEnvironment()
	repo := &UserRepo{}

	tests := []struct {
		name string
		user *model.User
	}{
		{"lowercase role code", &model.User{UserID: "jdoe", Email: "jdoe@example.com", RoleCode: "member"}},
		{"hyphenated role code", &model.User{UserID: "jdoe", Email: "jdoe@example.com", RoleCode: "bad-code"}},
		{"leading underscore position", &model.User{UserID: "jdoe", Email: "jdoe@example.com", PositionCode: "_STAFF"}},
		{"malformed email", &model.User{UserID: "jdoe", Email: "not-an-email", RoleCode: "MEMBER"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.AddUser(tt.user); err == nil {
				t.Errorf("AddUser(%+v) should fail validation", tt.user)
			}
		})
	}
}
