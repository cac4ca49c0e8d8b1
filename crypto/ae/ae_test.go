package ae

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(id string, b byte) *Key {
	var material [KeySize]byte
	for i := range material {
		material[i] = b
	}
	return NewKey(id, material)
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	key := testKey("key-1", 0x42)
	plaintext := []byte("insert hello at position 4")

	payload, err := Encrypt(plaintext, key, nil)
	require.NoError(t, err)
	require.Equal(t, "key-1", payload.KeyID)

	got, err := Decrypt(payload, key, nil)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestMarshalUnmarshal_Roundtrip(t *testing.T) {
	key := testKey("key-2", 0x11)
	payload, err := Encrypt([]byte("payload"), key, []byte("caller-aad"))
	require.NoError(t, err)

	blob := payload.Marshal()
	require.Len(t, blob, NonceSize+TagSize+len("payload"))

	parsed, err := Unmarshal("key-2", blob)
	require.NoError(t, err)

	plaintext, err := Decrypt(parsed, key, []byte("caller-aad"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), plaintext)
}

func TestDecrypt_KeyIDMismatch(t *testing.T) {
	key := testKey("key-3", 0x01)
	other := testKey("key-4", 0x01)

	payload, err := Encrypt([]byte("data"), key, nil)
	require.NoError(t, err)
	payload.KeyID = other.ID

	_, err = Decrypt(payload, other, nil)
	require.ErrorIs(t, err, ErrKeyIDMismatch)
}

func TestDecrypt_WrongAADFails(t *testing.T) {
	key := testKey("key-5", 0x77)
	payload, err := Encrypt([]byte("data"), key, []byte("correct-aad"))
	require.NoError(t, err)

	_, err = Decrypt(payload, key, []byte("wrong-aad"))
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	key := testKey("key-6", 0x09)
	payload, err := Encrypt([]byte("sensitive"), key, nil)
	require.NoError(t, err)

	payload.Ciphertext[0] ^= 0xFF

	_, err = Decrypt(payload, key, nil)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestUnmarshal_RejectsTruncatedInput(t *testing.T) {
	_, err := Unmarshal("key-1", make([]byte, NonceSize+TagSize-1))
	require.ErrorIs(t, err, ErrCiphertextTruncated)
}

func TestKeyDestroy_PreventsFurtherUse(t *testing.T) {
	key := testKey("key-7", 0x55)
	payload, err := Encrypt([]byte("data"), key, nil)
	require.NoError(t, err)

	require.NoError(t, key.Destroy())
	require.True(t, key.Destroyed())

	_, err = Encrypt([]byte("more"), key, nil)
	require.ErrorIs(t, err, ErrKeyDestroyed)

	_, err = Decrypt(payload, key, nil)
	require.ErrorIs(t, err, ErrKeyDestroyed)

	// Destroy is idempotent.
	require.NoError(t, key.Destroy())
}

func TestEncrypt_NoncesAreUnique(t *testing.T) {
	key := testKey("key-8", 0x03)
	p1, err := Encrypt([]byte("a"), key, nil)
	require.NoError(t, err)
	p2, err := Encrypt([]byte("a"), key, nil)
	require.NoError(t, err)

	require.NotEqual(t, p1.Nonce, p2.Nonce)
}
