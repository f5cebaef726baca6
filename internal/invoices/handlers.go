package invoices

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func requireCompany(w http.ResponseWriter, r *http.Request) (*auth.User, int64, bool) {
	user := auth.GetUser(r.Context())
	if user.CompanyID == nil {
		apperrors.WriteForbidden(w, r, "User must be associated with a company")
		return nil, 0, false
	}
	return user, *user.CompanyID, true
}

type CreateRequest struct {
	JobTicketID int64      `json:"job_ticket_id"`
	Amount      string     `json:"amount"`
	LineItems   []LineItem `json:"line_items,omitempty"`
}

// HandleCreate handles POST /api/v1/invoices
func HandleCreate(service *Service, auditor *audit.Writer) http.HandlerFunc {
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
		if req.JobTicketID <= 0 {
			apperrors.WriteBadRequest(w, r, "Job ticket ID is required")
			return
		}

		invoice, err := service.Create(ctx, CreateParams{
			CompanyID:   companyID,
			UserID:      user.ID,
			JobTicketID: req.JobTicketID,
			Amount:      req.Amount,
			LineItems:   req.LineItems,
		})
		if err != nil {
			if errors.Is(err, ErrTicketNotFound) {
				apperrors.WriteNotFound(w, r, "Job ticket not found")
				return
			}
			if errors.Is(err, ErrInvalidAmount) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to create invoice")
			apperrors.WriteInternalError(w, r, "Failed to create invoice")
			return
		}

		auditor.LogInvoiceCreated(ctx, user.ID, *user.CompanyUUID, invoice.ID, invoice.JobTicketID)

		apperrors.WriteSuccess(w, r, http.StatusCreated, invoice)
	}
}

// HandleGet handles GET /api/v1/invoices/{invoice_id}
func HandleGet(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoice_id"), 10, 64)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invoice ID")
			return
		}

		invoice, err := service.Get(r.Context(), companyID, invoiceID)
		if err != nil {
			if errors.Is(err, ErrInvoiceNotFound) {
				apperrors.WriteNotFound(w, r, "Invoice not found")
				return
			}
			log.Error().Err(err).Msg("Failed to get invoice")
			apperrors.WriteInternalError(w, r, "Failed to retrieve invoice")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, invoice)
	}
}

// HandleList handles GET /api/v1/invoices
func HandleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		var jobTicketID *int64
		if raw := r.URL.Query().Get("job_ticket_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid job ticket ID")
				return
			}
			jobTicketID = &id
		}

		invoices, err := service.List(r.Context(), companyID, r.URL.Query().Get("status"), jobTicketID, limit, offset)
		if err != nil {
			if errors.Is(err, ErrInvalidStatus) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to list invoices")
			apperrors.WriteInternalError(w, r, "Failed to retrieve invoices")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invoices": invoices,
		})
	}
}

type UpdateRequest struct {
	Amount    *string    `json:"amount,omitempty"`
	LineItems []LineItem `json:"line_items,omitempty"`
	Status    *string    `json:"status,omitempty"`
}

// HandleUpdate handles PATCH /api/v1/invoices/{invoice_id}
func HandleUpdate(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoice_id"), 10, 64)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invoice ID")
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		invoice, err := service.Update(ctx, companyID, invoiceID, UpdateParams{
			Amount:    req.Amount,
			LineItems: req.LineItems,
			Status:    req.Status,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvoiceNotFound):
				apperrors.WriteNotFound(w, r, "Invoice not found")
			case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidAmount):
				apperrors.WriteBadRequest(w, r, err.Error())
			default:
				log.Error().Err(err).Msg("Failed to update invoice")
				apperrors.WriteInternalError(w, r, "Failed to update invoice")
			}
			return
		}

		auditor.Log(ctx, audit.LogParams{
			UserID:     &user.ID,
			CompanyID:  user.CompanyUUID,
			Action:     audit.EventInvoiceUpdated,
			Category:   audit.CategoryInvoice,
			TargetID:   strconv.FormatInt(invoice.ID, 10),
			TargetType: "invoice",
		})

		apperrors.WriteSuccess(w, r, http.StatusOK, invoice)
	}
}
