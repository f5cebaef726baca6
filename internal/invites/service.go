package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Service owns the invite lifecycle: creation, listing, cancellation, and
// the single-use redemption flow.
type Service struct {
	pool   *pgxpool.Pool
	tokens *TokenService
}

func NewService(pool *pgxpool.Pool, tokens *TokenService) *Service {
	return &Service{pool: pool, tokens: tokens}
}

// CreateParams are the inputs for a new invite.
type CreateParams struct {
	TechName       string
	Email          string
	Phone          *string
	DeliveryMethod DeliveryMethod
	CompanyID      uuid.UUID
	CreatedBy      int64
}

// Create inserts a pending invite and returns it along with its signed
// token. Rejects the request when a user already holds the email or a
// still-valid pending invite exists for the same (email, company) pair.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Invite, string, error) {
	email, err := validation.NormalizeEmail(params.Email)
	if err != nil {
		return nil, "", err
	}

	if params.DeliveryMethod == "" {
		params.DeliveryMethod = DeliveryEmail
	}
	if !params.DeliveryMethod.IsValid() {
		return nil, "", fmt.Errorf("invalid delivery method: %s", params.DeliveryMethod)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, "", ErrEmailConflict
	}

	// A stale pending row past its expiry does not block a new invite; flip
	// it out of the way so the partial unique index accepts the insert.
	_, err = tx.Exec(ctx, `
		UPDATE tech_invites
		SET status = 'expired'
		WHERE company_id = $1
		  AND email = $2
		  AND status = 'pending'
		  AND expires_at <= NOW()
	`, params.CompanyID, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to expire stale invites: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.tokens.TTL())

	var invite Invite
	err = tx.QueryRow(ctx, `
		INSERT INTO tech_invites (tech_name, email, phone, company_id, delivery_method, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING invite_id, tech_name, email, phone, company_id, status, delivery_method, created_by, created_at, expires_at, used_at
	`, params.TechName, email, params.Phone, params.CompanyID, params.DeliveryMethod, params.CreatedBy, expiresAt).Scan(
		&invite.InviteID,
		&invite.TechName,
		&invite.Email,
		&invite.Phone,
		&invite.CompanyID,
		&invite.Status,
		&invite.DeliveryMethod,
		&invite.CreatedBy,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&invite.UsedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, "", ErrPendingInviteExists
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	// Sign before committing so a signing failure rolls the row back and
	// leaves nothing for the manager to clean up.
	token, err := s.tokens.Issue(invite.InviteID, invite.CompanyID, invite.TechName, invite.Email)
	if err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &invite, token, nil
}

// CompanyName looks up the display name behind a company's external id.
func (s *Service) CompanyName(ctx context.Context, companyID uuid.UUID) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM companies WHERE company_id = $1`, companyID).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("failed to look up company name: %w", err)
	}
	return name, nil
}

// List returns a company's invites, optionally filtered by status, and
// opportunistically flips stale pending rows to expired for bookkeeping.
// Correctness never depends on the flip: IsValid guards every reader.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, statusFilter string, limit, offset int) ([]Invite, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE tech_invites
		SET status = 'expired'
		WHERE company_id = $1
		  AND status = 'pending'
		  AND expires_at <= NOW()
	`, companyID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to flip stale invites to expired")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT invite_id, tech_name, email, phone, company_id, status, delivery_method, created_by, created_at, expires_at, used_at
		FROM tech_invites
		WHERE company_id = $1
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, companyID, statusFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []Invite
	for rows.Next() {
		var invite Invite
		if err := rows.Scan(
			&invite.InviteID,
			&invite.TechName,
			&invite.Email,
			&invite.Phone,
			&invite.CompanyID,
			&invite.Status,
			&invite.DeliveryMethod,
			&invite.CreatedBy,
			&invite.CreatedAt,
			&invite.ExpiresAt,
			&invite.UsedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}

	return invites, nil
}

// Cancel moves a pending invite to cancelled. Terminal states are left
// untouched and reported as ErrInviteNotPending.
func (s *Service) Cancel(ctx context.Context, companyID, inviteID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tech_invites
		SET status = 'cancelled'
		WHERE invite_id = $1
		  AND company_id = $2
		  AND status = 'pending'
	`, inviteID, companyID)
	if err != nil {
		return fmt.Errorf("failed to cancel invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := s.pool.QueryRow(ctx, `
			SELECT status FROM tech_invites
			WHERE invite_id = $1 AND company_id = $2
		`, inviteID, companyID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load invite: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrInviteNotPending, status)
	}

	return nil
}

// Prefill is the data returned by token validation for populating the
// signup form. Never requires authentication.
type Prefill struct {
	TechName    string    `json:"tech_name"`
	Email       string    `json:"email"`
	CompanyName string    `json:"company_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CheckToken validates a token structurally, then confirms the matching
// invite record is still redeemable. Read-only.
func (s *Service) CheckToken(ctx context.Context, token string) (*Prefill, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	invite, err := s.getByClaims(ctx, s.pool, claims, false)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !invite.IsValid(now) {
		return nil, goneErr(invite.GoneReason(now))
	}

	var companyName string
	err = s.pool.QueryRow(ctx, `SELECT name FROM companies WHERE company_id = $1`, invite.CompanyID).Scan(&companyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}

	return &Prefill{
		TechName:    invite.TechName,
		Email:       invite.Email,
		CompanyName: companyName,
		ExpiresAt:   invite.ExpiresAt,
	}, nil
}

// RedeemedUser is the outcome of a successful redemption.
type RedeemedUser struct {
	UserID    int64
	Email     string
	Name      string
	CompanyID uuid.UUID
	InviteID  uuid.UUID
}

// Redeem turns a bearer token into a live technician account exactly once.
// Token validation happens before any database access; the user insert and
// the invite status change commit in one transaction, so a failure between
// them rolls both back.
func (s *Service) Redeem(ctx context.Context, token, password string) (*RedeemedUser, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Row lock serializes concurrent redemptions of the same invite; the
	// loser of the race observes the accepted status and gets a gone error.
	invite, err := s.getByClaims(ctx, tx, claims, true)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !invite.IsValid(now) {
		return nil, goneErr(invite.GoneReason(now))
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, invite.Email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrEmailConflict
	}

	var companyRowID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM companies WHERE company_id = $1 AND is_active
	`, invite.CompanyID).Scan(&companyRowID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role, name, company_id, force_password_reset)
		VALUES ($1, $2, 'tech', $3, $4, FALSE)
		RETURNING id
	`, invite.Email, passwordHash, invite.TechName, companyRowID).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE tech_invites
		SET status = 'accepted', used_at = NOW()
		WHERE invite_id = $1
		  AND status = 'pending'
	`, invite.InviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invite used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, goneErr("already used")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("invite_id", invite.InviteID.String()).
		Int64("user_id", userID).
		Str("email", invite.Email).
		Msg("Invite redeemed, technician account created")

	return &RedeemedUser{
		UserID:    userID,
		Email:     invite.Email,
		Name:      invite.TechName,
		CompanyID: invite.CompanyID,
		InviteID:  invite.InviteID,
	}, nil
}

// querier covers both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getByClaims loads the invite the token claims point at. The token's
// invite id and company id must both match; a token replayed against a
// different tenant's record finds nothing.
func (s *Service) getByClaims(ctx context.Context, q querier, claims *TokenClaims, forUpdate bool) (*Invite, error) {
	inviteID, err := uuid.Parse(claims.InviteID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	query := `
		SELECT invite_id, tech_name, email, phone, company_id, status, delivery_method, created_by, created_at, expires_at, used_at
		FROM tech_invites
		WHERE invite_id = $1 AND company_id = $2
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var invite Invite
	err = q.QueryRow(ctx, query, inviteID, companyID).Scan(
		&invite.InviteID,
		&invite.TechName,
		&invite.Email,
		&invite.Phone,
		&invite.CompanyID,
		&invite.Status,
		&invite.DeliveryMethod,
		&invite.CreatedBy,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&invite.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	return &invite, nil
}
