package app

import (
	"net/http"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/companies"
	"github.com/brennanwesley/jobticketinvoice/internal/config"
	"github.com/brennanwesley/jobticketinvoice/internal/fieldcrypt"
	"github.com/brennanwesley/jobticketinvoice/internal/invites"
	"github.com/brennanwesley/jobticketinvoice/internal/invoices"
	"github.com/brennanwesley/jobticketinvoice/internal/notify"
	"github.com/brennanwesley/jobticketinvoice/internal/tickets"
	"github.com/brennanwesley/jobticketinvoice/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, codec *fieldcrypt.Codec) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(pool, cfg.JWTSecret))

	// Shared collaborators
	auditor := audit.NewWriter(pool)
	notifier := notify.NewClient(cfg.NotifyURL, cfg.NotifyTimeoutMS)
	tokenService := invites.NewTokenService(cfg.JWTSecret, cfg.InviteTTLHours)
	inviteService := invites.NewService(pool, tokenService)
	companyService := companies.NewService(pool)
	userService := users.NewService(pool)
	ticketService := tickets.NewService(pool, codec)
	invoiceService := invoices.NewService(pool, codec)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(RateLimitByIP(cfg.LoginRateLimitRPM)).
			Post("/login", auth.HandleLogin(pool, auditor, cfg.JWTSecret, cfg.SessionDays))
		r.Post("/manager-signup", companies.HandleManagerSignup(companyService, auditor, cfg.JWTSecret, cfg.SessionDays))
		r.With(auth.RequireAuth).Get("/me", auth.HandleMe())
	})

	// API routes - Technician invites
	r.Route("/api/v1/tech-invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public: the invitee has no session yet
		r.Get("/validate", invites.HandleValidate(inviteService))
		r.With(RateLimitByIP(cfg.RedeemRateLimitRPM)).
			Post("/redeem", invites.HandleRedeem(inviteService, auditor, cfg.JWTSecret, cfg.SessionDays))

		// Management (manager or admin)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Use(auth.RequireRole(auth.RoleManager, auth.RoleAdmin))

			r.Post("/", invites.HandleCreate(inviteService, auditor, notifier, cfg.BaseURL))
			r.Get("/", invites.HandleList(inviteService))
			r.Delete("/{invite_id}", invites.HandleCancel(inviteService, auditor))
		})
	})

	// API routes - Companies
	r.Route("/api/v1/companies", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)

		r.Get("/me", companies.HandleGetMyCompany(companyService))
		r.With(auth.RequireRole(auth.RoleManager, auth.RoleAdmin)).
			Patch("/me", companies.HandleUpdateMyCompany(companyService))
	})

	// API routes - Users (manager or admin)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)
		r.Use(auth.RequireRole(auth.RoleManager, auth.RoleAdmin))

		r.Get("/", users.HandleList(userService))
		r.Post("/tech", users.HandleCreateTech(userService, auditor))
		r.Delete("/{user_id}", users.HandleDeactivate(userService, auditor))
	})

	// API routes - Job tickets
	r.Route("/api/v1/job-tickets", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)

		r.Post("/", tickets.HandleCreate(ticketService, auditor))
		r.Get("/", tickets.HandleList(ticketService))
		r.Get("/{ticket_id}", tickets.HandleGet(ticketService))
		r.Patch("/{ticket_id}", tickets.HandleUpdate(ticketService, auditor))
	})

	// API routes - Invoices
	r.Route("/api/v1/invoices", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)

		r.Post("/", invoices.HandleCreate(invoiceService, auditor))
		r.Get("/", invoices.HandleList(invoiceService))
		r.Get("/{invoice_id}", invoices.HandleGet(invoiceService))
		r.Patch("/{invoice_id}", invoices.HandleUpdate(invoiceService, auditor))
	})

	// API routes - Audit log (manager or admin)
	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)
		r.Use(auth.RequireRole(auth.RoleManager, auth.RoleAdmin))

		r.Get("/logs", HandleListLogs(pool))
		r.Get("/stats", HandleStats(pool))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
