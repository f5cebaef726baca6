package invites

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIssue_AndValidate(t *testing.T) {
	svc := NewTokenService("test-secret", 48)
	inviteID := uuid.New()
	companyID := uuid.New()

	token, err := svc.Issue(inviteID, companyID, "Jane Doe", "jane@x.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, inviteID.String(), claims.InviteID)
	require.Equal(t, companyID.String(), claims.CompanyID)
	require.Equal(t, "Jane Doe", claims.TechName)
	require.Equal(t, "jane@x.com", claims.Email)
	require.Equal(t, TokenRole, claims.Role)
	require.Equal(t, TokenType, claims.TokenType)
	require.Equal(t, TokenIssuer, claims.Issuer)
	require.NotEmpty(t, claims.ID)
	require.WithinDuration(t, time.Now().Add(48*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidate_TamperedSignature(t *testing.T) {
	svc := NewTokenService("test-secret", 48)

	token, err := svc.Issue(uuid.New(), uuid.New(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)

	mutated := []byte(token)
	last := len(mutated) - 1
	if mutated[last] == 'A' {
		mutated[last] = 'B'
	} else {
		mutated[last] = 'A'
	}

	_, err = svc.Validate(string(mutated))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", 48).Issue(uuid.New(), uuid.New(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", 48).Validate(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_Expired(t *testing.T) {
	svc := NewTokenService("test-secret", -1)

	token, err := svc.Issue(uuid.New(), uuid.New(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func signCustomClaims(t *testing.T, secret string, claims *TokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func baseClaims() *TokenClaims {
	now := time.Now()
	return &TokenClaims{
		InviteID:  uuid.NewString(),
		CompanyID: uuid.NewString(),
		TechName:  "Jane Doe",
		Email:     "jane@x.com",
		Role:      TokenRole,
		TokenType: TokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        "test-jti",
		},
	}
}

func TestValidate_ClaimConfusion(t *testing.T) {
	const secret = "test-secret"
	svc := NewTokenService(secret, 48)

	wrongType := baseClaims()
	wrongType.TokenType = "password_reset"
	_, err := svc.Validate(signCustomClaims(t, secret, wrongType))
	require.ErrorIs(t, err, ErrTokenInvalid)

	wrongRole := baseClaims()
	wrongRole.Role = "manager"
	_, err = svc.Validate(signCustomClaims(t, secret, wrongRole))
	require.ErrorIs(t, err, ErrTokenInvalid)

	wrongIssuer := baseClaims()
	wrongIssuer.Issuer = "some-other-system"
	_, err = svc.Validate(signCustomClaims(t, secret, wrongIssuer))
	require.ErrorIs(t, err, ErrTokenInvalid)

	missingEmail := baseClaims()
	missingEmail.Email = ""
	_, err = svc.Validate(signCustomClaims(t, secret, missingEmail))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExtractInviteID(t *testing.T) {
	svc := NewTokenService("test-secret", 48)
	inviteID := uuid.New()

	token, err := svc.Issue(inviteID, uuid.New(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)

	require.Equal(t, inviteID.String(), svc.ExtractInviteID(token))
	require.Equal(t, "", svc.ExtractInviteID("garbage"))
}

func TestExtractInviteID_IgnoresSignature(t *testing.T) {
	// Extraction is a lookup aid, not an authorization check: it must work
	// even when the token was signed with a different secret.
	token, err := NewTokenService("secret-a", 48).Issue(uuid.New(), uuid.New(), "Jane Doe", "jane@x.com")
	require.NoError(t, err)

	svc := NewTokenService("secret-b", 48)
	require.NotEmpty(t, svc.ExtractInviteID(token))
}

func TestRedemptionLink(t *testing.T) {
	link := RedemptionLink("https://app.example.com", "a b+c")
	require.True(t, strings.HasPrefix(link, "https://app.example.com/signup-tech?token="))
	require.NotContains(t, link, " ")
	require.NotContains(t, link, "+c")
}
