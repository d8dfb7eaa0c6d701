package curve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagtrail/tagtrail/lib/codec"
	"github.com/tagtrail/tagtrail/lib/curve"
)

// Vectors computed with an independent P-224 reference implementation.
const (
	ownerPrivHex = "b1410e519e0f7298e5675c6678975d8009c8061b8341a8f352e64a85"
	ownerPubHex  = "03f93f35766782fdadf8d9f5f028c533ed8a60f397a4d3045ab51576bb"

	ephemeralHex = "04377178a9d4e22c37a9ba054f74ba16cc4d74de5e7c42e38b02d36fcb8c5aad84d813bd8cea3ae8ec06210014e94642f67ebcbc8163193f96"
	sharedHex    = "d7fe845a8edb48e822b2c9063a3a94b1b41d92fd3a3b5c70f9d44cc3"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := codec.FromHex(s)
	require.NoError(t, err)
	return b
}

func TestDerivePublic(t *testing.T) {
	pub, err := curve.DerivePublic(mustHex(t, ownerPrivHex))
	require.NoError(t, err)
	assert.Len(t, pub, curve.CompressedSize)
	assert.Equal(t, ownerPubHex, codec.ToHex(pub))
}

func TestDerivePublicDeterministic(t *testing.T) {
	priv := mustHex(t, ownerPrivHex)
	first, err := curve.DerivePublic(priv)
	require.NoError(t, err)
	second, err := curve.DerivePublic(priv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDerivePublicRejectsBadScalar(t *testing.T) {
	_, err := curve.DerivePublic([]byte{1, 2, 3})
	assert.ErrorIs(t, err, curve.ErrInvalidScalar)
}

func TestSharedSecret(t *testing.T) {
	shared, err := curve.SharedSecret(mustHex(t, ephemeralHex), mustHex(t, ownerPrivHex))
	require.NoError(t, err)
	assert.Len(t, shared, curve.ScalarSize)
	assert.Equal(t, sharedHex, codec.ToHex(shared))
}

func TestSharedSecretAcceptsCompressedPoint(t *testing.T) {
	// exchanging with our own public key must succeed in either encoding
	priv := mustHex(t, ownerPrivHex)
	pub, err := curve.DerivePublic(priv)
	require.NoError(t, err)

	shared, err := curve.SharedSecret(pub, priv)
	require.NoError(t, err)
	assert.Len(t, shared, curve.ScalarSize)
}

func TestSharedSecretRejectsInvalidPoint(t *testing.T) {
	bogus := make([]byte, curve.UncompressedSize)
	bogus[0] = 0x04
	_, err := curve.SharedSecret(bogus, mustHex(t, ownerPrivHex))
	assert.ErrorIs(t, err, curve.ErrInvalidPoint)
}
