package validation

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	// ErrEmailRequired is returned when an email is empty
	ErrEmailRequired = errors.New("email is required")

	// ErrEmailTooLong is returned when an email exceeds the RFC length limit
	ErrEmailTooLong = errors.New("email is too long")

	// ErrEmailInvalid is returned when an email fails to parse
	ErrEmailInvalid = errors.New("invalid email address")

	// ErrPasswordTooShort is returned when a password is under 8 characters
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// NormalizeEmail trims and validates an email address (RFC 5322 simplified)
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if len(email) > 320 {
		return "", ErrEmailTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrEmailInvalid
	}
	return email, nil
}

// ValidatePassword enforces the minimum password policy
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}

// NormalizeCompanyName collapses a company display name to the form used
// for uniqueness checks: lowercase with spaces, hyphens, and underscores
// removed.
func NormalizeCompanyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "", "-", "", "_", "")
	return replacer.Replace(name)
}
