package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Jane@X.com ")
	require.NoError(t, err)
	require.Equal(t, "jane@x.com", email)

	_, err = NormalizeEmail("")
	require.ErrorIs(t, err, ErrEmailRequired)

	_, err = NormalizeEmail("not-an-email")
	require.ErrorIs(t, err, ErrEmailInvalid)
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("Secret123!"))
	require.ErrorIs(t, ValidatePassword("short"), ErrPasswordTooShort)
}

func TestNormalizeCompanyName(t *testing.T) {
	require.Equal(t, "acmepumpservice", NormalizeCompanyName("Acme Pump-Service"))
	require.Equal(t, "acmepumpservice", NormalizeCompanyName("  ACME_pump service "))
	require.Equal(t, "", NormalizeCompanyName(""))
}
