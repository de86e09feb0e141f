package models

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleEditor:
		return true
	}
	return false
}

// User gates access to admin mutations. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id" bson:"id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash,omitempty"`
	Name         string    `json:"name" bson:"name"`
	Role         Role      `json:"role" bson:"role"`
	GoogleID     string    `json:"googleId,omitempty" bson:"google_id,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}
