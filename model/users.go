package model

import "time"

// User is a pre-registered directory entry. Only users present in the
// directory with Active=true may log in; the identity provider handshake
// itself never creates users.
type User struct {
	UserID       string    `bson:"user_id" json:"user_id"` // email local part
	Email        string    `bson:"email" json:"email" validate:"required,email"`
	Name         string    `bson:"name" json:"name"`
	Active       bool      `bson:"active" json:"active"`
	RoleCode     string    `bson:"role_code" json:"role_code" validate:"omitempty,usercode"`
	PositionCode string    `bson:"position_code" json:"position_code" validate:"omitempty,usercode"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
