package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userContextKey contextKey = "current_user"

// User is the authenticated principal attached to a request. CompanyID is
// the internal row id, CompanyUUID the externally shareable identifier;
// both are unset for admins, who bypass tenant scoping.
type User struct {
	ID          int64
	Email       string
	Name        *string
	Role        Role
	CompanyID   *int64
	CompanyUUID *uuid.UUID
}

// IsAdmin reports whether the user bypasses tenant scoping.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Middleware validates the Authorization bearer token and loads the user
// into the request context. Invalid or missing tokens continue without
// authentication; RequireAuth decides whether that is acceptable.
func Middleware(pool *pgxpool.Pool, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid session token")
				next.ServeHTTP(w, r)
				return
			}

			user, err := loadUser(r.Context(), pool, claims.UserID)
			if err != nil {
				if !errors.Is(err, pgx.ErrNoRows) {
					log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to load session user")
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is middleware that requires an authenticated user.
// Returns 401 if the request carries no valid session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r.Context()) == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole requires an authenticated user with one of the given roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// GetUser retrieves the authenticated user from the request context.
// Returns nil if no user is authenticated.
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying the given user. Used by tests.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func loadUser(ctx context.Context, pool *pgxpool.Pool, userID int64) (*User, error) {
	var user User
	var role string

	query := `
		SELECT u.id, u.email, u.name, u.role, u.company_id, c.company_id
		FROM users u
		LEFT JOIN companies c ON c.id = u.company_id
		WHERE u.id = $1 AND u.is_active
	`

	err := pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&role,
		&user.CompanyID,
		&user.CompanyUUID,
	)
	if err != nil {
		return nil, err
	}

	user.Role = Role(role)
	return &user, nil
}
