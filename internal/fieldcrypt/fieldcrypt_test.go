package fieldcrypt

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	codec, err := New(key)
	require.NoError(t, err)
	return codec
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	_, err := New(make([]byte, 16))
	require.Error(t, err)

	_, err = New(nil)
	require.Error(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, plaintext := range []string{
		"",
		"1427 County Road 12, Midland TX",
		"pulled rods, replaced stuffing box packing",
		`[{"description":"service call","amount":450.00}]`,
		"émile – ünïcode ✓",
	} {
		ciphertext, err := codec.EncryptString(plaintext)
		require.NoError(t, err)
		require.NotEqual(t, plaintext, ciphertext)

		decrypted, err := codec.DecryptString(ciphertext)
		require.NoError(t, err)
		require.Equal(t, plaintext, decrypted)
	}
}

func TestEncrypt_NoncesAreUnique(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.EncryptString("same value")
	require.NoError(t, err)
	b, err := codec.EncryptString("same value")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestDecrypt_WrongKey(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t)

	ciphertext, err := codec.EncryptString("confidential")
	require.NoError(t, err)

	_, err = other.DecryptString(ciphertext)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_Tampered(t *testing.T) {
	codec := newTestCodec(t)

	ciphertext, err := codec.EncryptString("confidential")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	if tampered[len(tampered)-1] == 'A' {
		tampered[len(tampered)-1] = 'B'
	} else {
		tampered[len(tampered)-1] = 'A'
	}

	_, err = codec.DecryptString(string(tampered))
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_Malformed(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.DecryptString("not base64!!!")
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = codec.DecryptString("c2hvcnQ")
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestNullable_NilPassthrough(t *testing.T) {
	codec := newTestCodec(t)

	out, err := codec.Encrypt(nil)
	require.NoError(t, err)
	require.Nil(t, out)

	out, err = codec.Decrypt(nil)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestNullable_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	plaintext := "well site 7"
	ciphertext, err := codec.Encrypt(&plaintext)
	require.NoError(t, err)
	require.NotNil(t, ciphertext)

	decrypted, err := codec.Decrypt(ciphertext)
	require.NoError(t, err)
	require.NotNil(t, decrypted)
	require.Equal(t, plaintext, *decrypted)
}
