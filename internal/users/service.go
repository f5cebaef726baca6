package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service manages accounts within a single company.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// List returns a company's accounts, newest first.
func (s *Service) List(ctx context.Context, companyID int64, limit, offset int) ([]User, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, email, role, name, is_active, force_password_reset, last_login_at, created_at
		FROM users
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &u.Name, &u.IsActive, &u.ForcePasswordReset, &u.LastLoginAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateTechParams are the inputs for a manager creating a technician
// account directly, without the invite flow.
type CreateTechParams struct {
	Email     string
	Name      string
	Password  string
	CompanyID int64
}

// CreateTech inserts a technician account with a temporary password.
// The account is flagged for a forced password reset on first login.
func (s *Service) CreateTech(ctx context.Context, params CreateTechParams) (*User, error) {
	email, err := validation.NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(params.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var u User
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role, name, company_id, force_password_reset)
		VALUES ($1, $2, 'tech', $3, $4, TRUE)
		RETURNING id, email, role, name, is_active, force_password_reset, last_login_at, created_at
	`, email, hash, params.Name, params.CompanyID).Scan(
		&u.ID, &u.Email, &u.Role, &u.Name, &u.IsActive, &u.ForcePasswordReset, &u.LastLoginAt, &u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("failed to create tech user: %w", err)
	}
	return &u, nil
}

// Deactivate soft-disables an account within the company. The row stays
// for audit history; auth refuses inactive users at load time.
func (s *Service) Deactivate(ctx context.Context, companyID, userID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND is_active
	`, userID, companyID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
