// Package curve implements the P-224 operations behind offline-finding
// accessory identities: deriving the broadcast key material from an owner's
// private scalar and running the per-report ECDH exchange.
package curve

import (
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"
)

const (
	// ScalarSize is the width of a P-224 private scalar or coordinate.
	ScalarSize = 28

	// CompressedSize is a compressed SEC1 point: format byte plus X.
	CompressedSize = ScalarSize + 1

	// UncompressedSize is an uncompressed SEC1 point: format byte plus X and Y.
	UncompressedSize = 2*ScalarSize + 1
)

var (
	ErrUnavailable   = errors.New("curve: p224 implementation unavailable")
	ErrInvalidPoint  = errors.New("curve: point not on p224")
	ErrInvalidScalar = errors.New("curve: invalid private scalar")
)

// p224 loads the named curve. Matches SECP224R1.
func p224() (elliptic.Curve, error) {
	c := elliptic.P224()
	if c == nil || c.Params() == nil {
		return nil, ErrUnavailable
	}
	return c, nil
}

// DerivePublic runs scalar-to-point multiplication and returns the public
// key in compressed form: one format byte plus the 28-byte X coordinate.
func DerivePublic(privateKey []byte) ([]byte, error) {
	if len(privateKey) != ScalarSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidScalar, len(privateKey), ScalarSize)
	}
	c, err := p224()
	if err != nil {
		return nil, err
	}
	x, y := c.ScalarBaseMult(privateKey)
	return elliptic.MarshalCompressed(c, x, y), nil
}

// SharedSecret combines the owner's private scalar with a report's ephemeral
// public point and returns the X coordinate of the product, fixed-width at
// 28 bytes. Pure function of its two inputs.
func SharedSecret(ephemeralPublic, privateKey []byte) ([]byte, error) {
	if len(privateKey) != ScalarSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidScalar, len(privateKey), ScalarSize)
	}
	c, err := p224()
	if err != nil {
		return nil, err
	}
	x, y := unmarshalPoint(c, ephemeralPublic)
	if x == nil {
		return nil, ErrInvalidPoint
	}
	sharedX, _ := c.ScalarMult(x, y, privateKey)
	out := make([]byte, ScalarSize)
	sharedX.FillBytes(out)
	return out, nil
}

// unmarshalPoint accepts both SEC1 encodings: reports carry the ephemeral
// key uncompressed, device identities use the compressed form.
func unmarshalPoint(c elliptic.Curve, data []byte) (*big.Int, *big.Int) {
	if len(data) == CompressedSize {
		return elliptic.UnmarshalCompressed(c, data)
	}
	return elliptic.Unmarshal(c, data)
}
