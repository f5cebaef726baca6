package companies

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCompanyNameTaken is returned when an active company already
	// holds the normalized form of the requested name.
	ErrCompanyNameTaken = errors.New("company name already taken")

	// ErrCompanyNotFound is returned when no company matches the lookup.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrEmailConflict is returned when the signup email already has an
	// account.
	ErrEmailConflict = errors.New("user account already exists")
)

// Company is a tenant. The bigint id keys internal foreign keys; the
// UUID CompanyID is the only identifier ever exposed over the API.
type Company struct {
	ID             int64     `json:"-"`
	CompanyID      uuid.UUID `json:"company_id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"-"`
	Address        *string   `json:"address,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	LogoURL        *string   `json:"logo_url,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
