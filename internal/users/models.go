package users

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup within
	// the caller's company scope.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailConflict is returned when the email already has an account.
	ErrEmailConflict = errors.New("user account already exists")
)

// User is an account row as exposed over the API. Password hashes never
// leave the package.
type User struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	Name               *string    `json:"name,omitempty"`
	IsActive           bool       `json:"is_active"`
	ForcePasswordReset bool       `json:"force_password_reset"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}
