// Package codec holds the byte-level conversions shared by the key and
// report pipelines. Inputs are not validated beyond what the underlying
// encodings require; malformed data surfaces as a decode error and is
// handled by the caller.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
)

func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func ToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func FromHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// Uint32BE reads a big-endian 32-bit field. Panics if b is shorter than
// four bytes, same as encoding/binary.
func Uint32BE(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func PutUint32BE(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
