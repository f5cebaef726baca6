package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service owns company records and the manager signup flow.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// SignupParams are the inputs for creating a company with its first
// manager.
type SignupParams struct {
	CompanyName string
	Email       string
	Password    string
	Name        string
	Address     *string
	Phone       *string
}

// SignupResult carries the newly created tenant and its manager account.
type SignupResult struct {
	Company Company
	UserID  int64
	Email   string
}

// SignupManager creates a company and its first manager user in one
// transaction. Either both rows exist afterwards or neither does.
func (s *Service) SignupManager(ctx context.Context, params SignupParams) (*SignupResult, error) {
	email, err := validation.NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(params.Password); err != nil {
		return nil, err
	}
	normalized := validation.NormalizeCompanyName(params.CompanyName)
	if normalized == "" {
		return nil, errors.New("company name is required")
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var company Company
	err = tx.QueryRow(ctx, `
		INSERT INTO companies (name, normalized_name, address, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, company_id, name, normalized_name, address, phone, logo_url, is_active, created_at, updated_at
	`, params.CompanyName, normalized, params.Address, params.Phone).Scan(
		&company.ID,
		&company.CompanyID,
		&company.Name,
		&company.NormalizedName,
		&company.Address,
		&company.Phone,
		&company.LogoURL,
		&company.IsActive,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCompanyNameTaken
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role, name, company_id)
		VALUES ($1, $2, 'manager', $3, $4)
		RETURNING id
	`, email, hash, params.Name, company.ID).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("failed to create manager user: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE companies SET created_by = $1 WHERE id = $2`, userID, company.ID); err != nil {
		return nil, fmt.Errorf("failed to record company creator: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &SignupResult{Company: company, UserID: userID, Email: email}, nil
}

// Get looks up a company by its external UUID.
func (s *Service) Get(ctx context.Context, companyID uuid.UUID) (*Company, error) {
	var company Company
	err := s.pool.QueryRow(ctx, `
		SELECT id, company_id, name, normalized_name, address, phone, logo_url, is_active, created_at, updated_at
		FROM companies
		WHERE company_id = $1
	`, companyID).Scan(
		&company.ID,
		&company.CompanyID,
		&company.Name,
		&company.NormalizedName,
		&company.Address,
		&company.Phone,
		&company.LogoURL,
		&company.IsActive,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

// UpdateParams are the mutable company profile fields. Nil leaves a
// field unchanged.
type UpdateParams struct {
	Address *string
	Phone   *string
	LogoURL *string
}

// Update patches the company profile and returns the updated row.
func (s *Service) Update(ctx context.Context, companyID uuid.UUID, params UpdateParams) (*Company, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET address = COALESCE($2, address),
		    phone = COALESCE($3, phone),
		    logo_url = COALESCE($4, logo_url),
		    updated_at = NOW()
		WHERE company_id = $1
	`, companyID, params.Address, params.Phone, params.LogoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrCompanyNotFound
	}
	return s.Get(ctx, companyID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
