package invites

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/notify"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type CreateRequest struct {
	TechName       string  `json:"tech_name"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone,omitempty"`
	DeliveryMethod string  `json:"delivery_method,omitempty"`
}

type CreateResponse struct {
	InviteID   uuid.UUID `json:"invite_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	SignupLink string    `json:"signup_link"`
	Notified   bool      `json:"notified"`
}

type ValidateResponse struct {
	Valid       bool       `json:"valid"`
	Reason      string     `json:"reason,omitempty"`
	TechName    string     `json:"tech_name,omitempty"`
	Email       string     `json:"email,omitempty"`
	CompanyName string     `json:"company_name,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type RedeemRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type RedeemResponse struct {
	Success     bool   `json:"success"`
	UserID      int64  `json:"user_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// requireCompany resolves the acting manager/admin's company scope.
// Invite operations always run against a concrete company.
func requireCompany(w http.ResponseWriter, r *http.Request) (*auth.User, uuid.UUID, bool) {
	user := auth.GetUser(r.Context())
	if user.CompanyUUID == nil {
		apperrors.WriteForbidden(w, r, "User must be associated with a company")
		return nil, uuid.Nil, false
	}
	return user, *user.CompanyUUID, true
}

// HandleCreate handles POST /api/v1/tech-invites
func HandleCreate(service *Service, auditor *audit.Writer, notifier *notify.Client, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.TechName = strings.TrimSpace(req.TechName)
		if req.TechName == "" {
			apperrors.WriteBadRequest(w, r, "Technician name is required")
			return
		}

		invite, token, err := service.Create(ctx, CreateParams{
			TechName:       req.TechName,
			Email:          req.Email,
			Phone:          req.Phone,
			DeliveryMethod: DeliveryMethod(req.DeliveryMethod),
			CompanyID:      companyID,
			CreatedBy:      user.ID,
		})
		if err != nil {
			if errors.Is(err, ErrEmailConflict) || errors.Is(err, ErrPendingInviteExists) {
				apperrors.WriteConflict(w, r, err.Error())
				return
			}
			if errors.Is(err, validation.ErrEmailRequired) ||
				errors.Is(err, validation.ErrEmailTooLong) ||
				errors.Is(err, validation.ErrEmailInvalid) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to create invite")
			apperrors.WriteInternalError(w, r, "Failed to create invite")
			return
		}

		auditor.LogInviteCreated(ctx, user.ID, companyID, invite.InviteID, invite.Email)

		signupLink := RedemptionLink(baseURL, token)

		destination := invite.Email
		if invite.DeliveryMethod == DeliverySMS && invite.Phone != nil {
			destination = *invite.Phone
		}
		companyName, err := service.CompanyName(ctx, companyID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to resolve company name for invite notification")
		}
		notified := notifier.Send(ctx, notify.Message{
			Destination: destination,
			Channel:     string(invite.DeliveryMethod),
			TechName:    invite.TechName,
			CompanyName: companyName,
			SignupLink:  signupLink,
			ExpiresAt:   invite.ExpiresAt.Format(time.RFC3339),
		})

		apperrors.WriteSuccess(w, r, http.StatusCreated, CreateResponse{
			InviteID:   invite.InviteID,
			Token:      token,
			ExpiresAt:  invite.ExpiresAt,
			SignupLink: signupLink,
			Notified:   notified,
		})
	}
}

// HandleValidate handles GET /api/v1/tech-invites/validate?token=
// Public: used to pre-fill the signup form before the invitee has an account.
func HandleValidate(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			apperrors.WriteBadRequest(w, r, "Token is required")
			return
		}

		prefill, err := service.CheckToken(ctx, token)
		if err != nil {
			writeTokenError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, ValidateResponse{
			Valid:       true,
			TechName:    prefill.TechName,
			Email:       prefill.Email,
			CompanyName: prefill.CompanyName,
			ExpiresAt:   &prefill.ExpiresAt,
		})
	}
}

// HandleRedeem handles POST /api/v1/tech-invites/redeem
// Public: turns a valid token plus a chosen password into a technician
// account and an immediate session.
func HandleRedeem(service *Service, auditor *audit.Writer, jwtSecret string, sessionDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req RedeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Token is required")
			return
		}
		if err := validation.ValidatePassword(req.Password); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		redeemed, err := service.Redeem(ctx, req.Token, req.Password)
		if err != nil {
			writeTokenError(w, r, err)
			return
		}

		auditor.LogInviteRedeemed(ctx, redeemed.UserID, redeemed.CompanyID, redeemed.InviteID, redeemed.Email)

		accessToken, err := auth.CreateToken(redeemed.UserID, auth.RoleTech, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session for redeemed invite")
			apperrors.WriteInternalError(w, r, "Account created but session could not be issued; please log in")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, RedeemResponse{
			Success:     true,
			UserID:      redeemed.UserID,
			AccessToken: accessToken,
			TokenType:   "bearer",
		})
	}
}

// HandleList handles GET /api/v1/tech-invites
func HandleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		_, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		invites, err := service.List(ctx, companyID, r.URL.Query().Get("status"), limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invites")
			apperrors.WriteInternalError(w, r, "Failed to retrieve invites")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invites": invites,
		})
	}
}

// HandleCancel handles DELETE /api/v1/tech-invites/{invite_id}
func HandleCancel(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		if err := service.Cancel(ctx, companyID, inviteID); err != nil {
			if errors.Is(err, ErrInviteNotFound) {
				apperrors.WriteNotFound(w, r, "Invite not found")
				return
			}
			if errors.Is(err, ErrInviteNotPending) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to cancel invite")
			apperrors.WriteInternalError(w, r, "Failed to cancel invite")
			return
		}

		auditor.LogInviteCancelled(ctx, user.ID, companyID, inviteID)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"cancelled": true,
		})
	}
}

// writeTokenError maps the invite error taxonomy onto transport statuses:
// token failures 401, missing record 404, dead record 410, duplicate
// account 409.
func writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		apperrors.WriteUnauthorized(w, r, "Invite token has expired")
	case errors.Is(err, ErrTokenInvalid):
		apperrors.WriteUnauthorized(w, r, "Invalid or tampered invite token")
	case errors.Is(err, ErrInviteNotFound):
		apperrors.WriteNotFound(w, r, "Invite not found")
	case errors.Is(err, ErrInviteGone):
		apperrors.WriteGone(w, r, err.Error())
	case errors.Is(err, ErrEmailConflict):
		apperrors.WriteConflict(w, r, "User account already exists")
	case errors.Is(err, validation.ErrPasswordTooShort):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		log.Error().Err(err).Msg("Invite token operation failed")
		apperrors.WriteInternalError(w, r, "Invite operation failed")
	}
}
