package invites

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenIssuer identifies tokens minted by this service. Tokens with any
	// other issuer are rejected regardless of signature validity.
	TokenIssuer = "jobticket-invite-system"

	// TokenType discriminates invite tokens from session tokens signed with
	// the same application secret.
	TokenType = "tech_invite"

	// TokenRole is baked into every invite token. Redemption always creates
	// a technician; the claim exists so a swapped token cannot escalate.
	TokenRole = "tech"
)

var (
	// ErrTokenInvalid is returned for signature failures, missing claims,
	// and claim-confusion (wrong type, role, or issuer). Not retryable.
	ErrTokenInvalid = errors.New("invalid or tampered invite token")

	// ErrTokenExpired is returned for a well-formed token past its expiry,
	// so callers can show "link expired" instead of "link malformed".
	ErrTokenExpired = errors.New("invite token has expired")
)

// TokenClaims is the claims set carried by an invite token. The token is a
// self-contained bearer credential; the tech_invites row remains the source
// of truth for single-use enforcement.
type TokenClaims struct {
	InviteID  string `json:"invite_id"`
	CompanyID string `json:"company_id"`
	TechName  string `json:"tech_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed invite tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service signing with the shared
// application secret. ttlHours defaults the embedded expiry window.
func NewTokenService(secret string, ttlHours int) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    time.Duration(ttlHours) * time.Hour,
	}
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed invite token for the given invite. Pure function
// of its inputs, the current time, and the signing secret.
func (s *TokenService) Issue(inviteID, companyID uuid.UUID, techName, email string) (string, error) {
	now := time.Now()

	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	claims := &TokenClaims{
		InviteID:  inviteID.String(),
		CompanyID: companyID.String(),
		TechName:  techName,
		Email:     email,
		Role:      TokenRole,
		TokenType: TokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        base64.RawURLEncoding.EncodeToString(jti),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign invite token: %w", err)
	}

	return signed, nil
}

// Validate verifies an invite token's signature and claims without touching
// the datastore. Expiry is reported as ErrTokenExpired; every other failure
// mode, including type/role/issuer confusion, is ErrTokenInvalid.
func (s *TokenService) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithIssuedAt())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.InviteID == "" || claims.CompanyID == "" || claims.TechName == "" || claims.Email == "" {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != TokenType {
		return nil, ErrTokenInvalid
	}
	if claims.Role != TokenRole {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// ExtractInviteID pulls the invite id out of a token without verifying the
// signature. Only usable as a database lookup key ahead of full validation,
// never for authorization. Returns empty string on any parse failure.
func (s *TokenService) ExtractInviteID(tokenString string) string {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, &TokenClaims{})
	if err != nil {
		return ""
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return ""
	}
	return claims.InviteID
}

// RedemptionLink builds the signup URL delivered to the invitee.
func RedemptionLink(baseURL, token string) string {
	return baseURL + "/signup-tech?token=" + url.QueryEscape(token)
}
