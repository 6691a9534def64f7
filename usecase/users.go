package usecase

import (
	"log"
	"strings"

	"main/model"
	"main/utils"
)

// UserDirectory is the lookup surface the login path needs. The mongo-backed
// user repository satisfies it; tests substitute a fake.
type UserDirectory interface {
	FindUserByID(userID string) (*model.User, error)
}

// UserService validates logins against the pre-registered user directory.
// The identity provider only proves who the caller is; whether they may log
// in is decided here.
type UserService struct {
	UsersRepo UserDirectory
}

func NewUserService(repo UserDirectory) *UserService {
	return &UserService{UsersRepo: repo}
}

// Display names for directory codes. Unknown codes fall back to the code
// itself so a new code never breaks login.
var roleNames = map[string]string{
	"ADMIN":   "Administrator",
	"MANAGER": "Manager",
	"MEMBER":  "Member",
}

var positionNames = map[string]string{
	"LEAD":  "Team Lead",
	"STAFF": "Staff",
}

func RoleName(code string) string {
	if name, ok := roleNames[code]; ok {
		return name
	}
	return code
}

func PositionName(code string) string {
	if name, ok := positionNames[code]; ok {
		return name
	}
	return code
}

// UserIDFromEmail derives the directory key from a verified email address:
// the local part, lowercased.
func UserIDFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.ToLower(local)
}

// ResolveLogin maps a provider-verified email to a registered, active
// directory entry. Returns nil when the user is unknown or deactivated;
// the handshake never creates users.
func (s *UserService) ResolveLogin(email string) (*model.User, error) {
	userID := UserIDFromEmail(email)
	if userID == "" {
		return nil, nil
	}

	user, err := s.UsersRepo.FindUserByID(userID)
	if err != nil {
		utils.TrackError("auth", "user_lookup_failed")
		return nil, err
	}
	if user == nil {
		log.Printf("Login rejected: user %s not registered", userID)
		return nil, nil
	}
	if !user.Active {
		log.Printf("Login rejected: user %s is deactivated", userID)
		return nil, nil
	}

	return user, nil
}
