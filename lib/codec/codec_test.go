package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagtrail/tagtrail/lib/codec"
)

func TestBase64RoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xfe, 0xff, 0x7f}
	encoded := codec.ToBase64(raw)
	decoded, err := codec.FromBase64(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestFromBase64Malformed(t *testing.T) {
	_, err := codec.FromBase64("not base64!!")
	assert.Error(t, err)
}

func TestHexRoundTrip(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	assert.Equal(t, "deadbeef", codec.ToHex(raw))

	decoded, err := codec.FromHex("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestUint32BE(t *testing.T) {
	assert.Equal(t, uint32(0x01020304), codec.Uint32BE([]byte{1, 2, 3, 4}))
	assert.Equal(t, uint32(0xffffffff), codec.Uint32BE([]byte{0xff, 0xff, 0xff, 0xff}))
	assert.Equal(t, []byte{1, 2, 3, 4}, codec.PutUint32BE(0x01020304))
}
