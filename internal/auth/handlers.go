package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	UserID             int64  `json:"user_id"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	ForcePasswordReset bool   `json:"force_password_reset"`
}

// HandleLogin processes user authentication
func HandleLogin(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		email, err := validation.NormalizeEmail(req.Email)
		if err != nil || req.Password == "" {
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		var userID int64
		var passwordHash string
		var role string
		var forceReset bool
		var companyUUID *uuid.UUID

		query := `
			SELECT u.id, u.password_hash, u.role, u.force_password_reset, c.company_id
			FROM users u
			LEFT JOIN companies c ON c.id = u.company_id
			WHERE u.email = $1 AND u.is_active
		`

		err = pool.QueryRow(ctx, query, email).Scan(&userID, &passwordHash, &role, &forceReset, &companyUUID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Debug().Str("email", email).Msg("Login failed: user not found")
				auditor.LogLoginFailed(ctx, email, r.RemoteAddr)
				apperrors.WriteUnauthorized(w, r, "Invalid credentials")
				return
			}
			log.Error().Err(err).Str("email", email).Msg("Failed to query user")
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		if err := VerifyPassword(passwordHash, req.Password); err != nil {
			log.Debug().Str("email", email).Msg("Login failed: wrong password")
			auditor.LogLoginFailed(ctx, email, r.RemoteAddr)
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		token, err := CreateToken(userID, Role(role), jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}

		if _, err := pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to record last login")
		}

		auditor.LogUserLogin(ctx, userID, companyUUID, email, r.RemoteAddr)

		log.Info().
			Int64("user_id", userID).
			Str("email", email).
			Msg("User logged in successfully")

		apperrors.WriteSuccess(w, r, http.StatusOK, LoginResponse{
			AccessToken:        token,
			TokenType:          "bearer",
			UserID:             userID,
			Email:              email,
			Role:               role,
			ForcePasswordReset: forceReset,
		})
	}
}

// MeResponse describes the authenticated user
type MeResponse struct {
	UserID    int64      `json:"user_id"`
	Email     string     `json:"email"`
	Name      *string    `json:"name,omitempty"`
	Role      string     `json:"role"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

// HandleMe handles GET /api/v1/auth/me
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())

		apperrors.WriteSuccess(w, r, http.StatusOK, MeResponse{
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Role:      string(user.Role),
			CompanyID: user.CompanyUUID,
		})
	}
}
