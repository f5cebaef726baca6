package companies

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/rs/zerolog/log"
)

type SignupRequest struct {
	CompanyName string  `json:"company_name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Name        string  `json:"name"`
	Address     *string `json:"address,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

type SignupResponse struct {
	Company     Company `json:"company"`
	UserID      int64   `json:"user_id"`
	Email       string  `json:"email"`
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
}

// HandleManagerSignup handles POST /api/v1/auth/manager-signup
// Public: creates a tenant and its first manager, then issues a session
// so the new manager is logged in immediately.
func HandleManagerSignup(service *Service, auditor *audit.Writer, jwtSecret string, sessionDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Name is required")
			return
		}

		result, err := service.SignupManager(ctx, SignupParams{
			CompanyName: req.CompanyName,
			Email:       req.Email,
			Password:    req.Password,
			Name:        req.Name,
			Address:     req.Address,
			Phone:       req.Phone,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrCompanyNameTaken), errors.Is(err, ErrEmailConflict):
				apperrors.WriteConflict(w, r, err.Error())
			case errors.Is(err, validation.ErrEmailRequired),
				errors.Is(err, validation.ErrEmailTooLong),
				errors.Is(err, validation.ErrEmailInvalid),
				errors.Is(err, validation.ErrPasswordTooShort):
				apperrors.WriteBadRequest(w, r, err.Error())
			default:
				log.Error().Err(err).Msg("Manager signup failed")
				apperrors.WriteInternalError(w, r, "Signup failed")
			}
			return
		}

		auditor.LogManagerSignup(ctx, result.UserID, result.Company.CompanyID, result.Company.Name)

		accessToken, err := auth.CreateToken(result.UserID, auth.RoleManager, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session for new manager")
			apperrors.WriteInternalError(w, r, "Account created but session could not be issued; please log in")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, SignupResponse{
			Company:     result.Company,
			UserID:      result.UserID,
			Email:       result.Email,
			AccessToken: accessToken,
			TokenType:   "bearer",
		})
	}
}

// HandleGetMyCompany handles GET /api/v1/companies/me
func HandleGetMyCompany(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user.CompanyUUID == nil {
			apperrors.WriteNotFound(w, r, "User has no company")
			return
		}

		company, err := service.Get(r.Context(), *user.CompanyUUID)
		if err != nil {
			if errors.Is(err, ErrCompanyNotFound) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			log.Error().Err(err).Msg("Failed to get company")
			apperrors.WriteInternalError(w, r, "Failed to retrieve company")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, company)
	}
}

type UpdateRequest struct {
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
}

// HandleUpdateMyCompany handles PATCH /api/v1/companies/me
func HandleUpdateMyCompany(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user.CompanyUUID == nil {
			apperrors.WriteNotFound(w, r, "User has no company")
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		company, err := service.Update(r.Context(), *user.CompanyUUID, UpdateParams{
			Address: req.Address,
			Phone:   req.Phone,
			LogoURL: req.LogoURL,
		})
		if err != nil {
			if errors.Is(err, ErrCompanyNotFound) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			log.Error().Err(err).Msg("Failed to update company")
			apperrors.WriteInternalError(w, r, "Failed to update company")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, company)
	}
}
