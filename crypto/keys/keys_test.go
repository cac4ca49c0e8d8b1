package keys

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	eecpcrypto "github.com/digital-defiance/eecp/crypto"
)

func TestGenerateEd25519KeyPair_SignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateEd25519KeyPair()
	require.NoError(t, err)
	require.Equal(t, eecpcrypto.KeyTypeEd25519, kp.Type())
	require.NotEmpty(t, kp.ID())

	msg := []byte("hello workspace")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)
	require.NoError(t, kp.Verify(msg, sig))
}

func TestGenerateEd25519KeyPair_VerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := GenerateEd25519KeyPair()
	require.NoError(t, err)

	sig, err := kp.Sign([]byte("original"))
	require.NoError(t, err)
	err = kp.Verify([]byte("tampered"), sig)
	require.ErrorIs(t, err, eecpcrypto.ErrInvalidSignature)
}

func TestNewEd25519KeyPair_DerivesIDFromPublicKeyWhenEmpty(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	kp, err := NewEd25519KeyPair(priv, "")
	require.NoError(t, err)
	require.NotEmpty(t, kp.ID())

	kp2, err := NewEd25519KeyPair(priv, "")
	require.NoError(t, err)
	require.Equal(t, kp.ID(), kp2.ID(), "id derivation must be deterministic for the same public key")
}

func TestNewEd25519KeyPair_HonorsExplicitID(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	kp, err := NewEd25519KeyPair(priv, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", kp.ID())
}

func TestNewEd25519PublicKeyPair_CanVerifyButNotSign(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	full, err := NewEd25519KeyPair(priv, "bob")
	require.NoError(t, err)
	sig, err := full.Sign([]byte("payload"))
	require.NoError(t, err)

	pubOnly := NewEd25519PublicKeyPair(pub, "bob")
	require.NoError(t, pubOnly.Verify([]byte("payload"), sig))
	require.Nil(t, pubOnly.PrivateKey())

	_, err = pubOnly.Sign([]byte("payload"))
	require.Error(t, err)
}
