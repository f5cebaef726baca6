package invoices

import (
	"bytes"
	"testing"

	"github.com/brennanwesley/jobticketinvoice/internal/fieldcrypt"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	codec, err := fieldcrypt.New(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)
	return NewService(nil, codec)
}

func TestNormalizeAmount(t *testing.T) {
	got, err := normalizeAmount(" 1250.50 ")
	require.NoError(t, err)
	require.Equal(t, "1250.50", got)

	_, err = normalizeAmount("")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = normalizeAmount("twelve dollars")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLineItemsRoundTrip(t *testing.T) {
	svc := newTestService(t)

	items := []LineItem{
		{Description: "Pump repair labor", Quantity: 4, UnitPrice: "95.00", Total: "380.00"},
		{Description: "Seal kit", Quantity: 1, UnitPrice: "212.40", Total: "212.40"},
	}

	sealed, err := svc.sealLineItems(items)
	require.NoError(t, err)
	require.NotNil(t, sealed)
	require.NotContains(t, *sealed, "Pump repair labor")

	encAmount, err := svc.codec.EncryptString("592.40")
	require.NoError(t, err)

	row := invoiceRow{amount: encAmount, lineItems: sealed}
	inv, err := svc.decryptInvoice(&row)
	require.NoError(t, err)
	require.Equal(t, "592.40", inv.Amount)
	require.Equal(t, items, inv.LineItems)
}

func TestSealLineItemsNilPassthrough(t *testing.T) {
	svc := newTestService(t)

	sealed, err := svc.sealLineItems(nil)
	require.NoError(t, err)
	require.Nil(t, sealed)
}

func TestDecryptInvoiceWrongKey(t *testing.T) {
	svc := newTestService(t)

	other, err := fieldcrypt.New(bytes.Repeat([]byte{0x09}, 32))
	require.NoError(t, err)
	foreign, err := other.EncryptString("592.40")
	require.NoError(t, err)

	row := invoiceRow{amount: foreign}
	_, err = svc.decryptInvoice(&row)
	require.ErrorIs(t, err, fieldcrypt.ErrDecrypt)
}
