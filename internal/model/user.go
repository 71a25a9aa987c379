package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// NewUser builds a user record with a fresh identifier. The password
// must already be hashed by the caller.
func NewUser(email, hashedPassword string) *User {
	now := time.Now().UTC()
	return &User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
