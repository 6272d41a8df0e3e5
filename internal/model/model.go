package model

import (
	"errors"
	"time"

	"semaphore/auth-session/internal/access"
)

// User is the stored account record. This service only reads it.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         access.Role
	FirstName    *string
	LastName     *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated caller, rebuilt on every request from the
// session token and a fresh user lookup.
type Identity struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      access.Role `json:"role"`
	FirstName *string     `json:"firstName,omitempty"`
	LastName  *string     `json:"lastName,omitempty"`
	IsActive  bool        `json:"isActive"`
}

func IdentityFromUser(user User) Identity {
	return Identity{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
	}
}

// ErrUserNotFound is returned by user lookups when no record matches.
var ErrUserNotFound = errors.New("user_not_found")
