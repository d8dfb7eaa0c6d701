package reports

import (
	"fmt"
	"time"

	"github.com/tagtrail/tagtrail/lib/codec"
	"github.com/tagtrail/tagtrail/lib/curve"
)

// Report payload layout, big-endian, after base64 decoding and the
// spurious-byte correction:
//
//	[0:4]   seen timestamp, seconds since 2001-01-01T00:00:00Z
//	[4]     confidence
//	[5:62]  ephemeral public key, uncompressed SEC1 point
//	[62:72] AES-GCM ciphertext
//	[72:88] AES-GCM tag
const (
	payloadSize    = 88
	ciphertextSize = 10
	tagSize        = 16

	ephemeralKeyOffset = 5
	ciphertextOffset   = ephemeralKeyOffset + curve.UncompressedSize
	tagOffset          = ciphertextOffset + ciphertextSize
)

// Tags report time as seconds since the 2001 epoch, not 1970.
var seenEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

const coordinateScale = 10000000

// normalize applies the correction for the 89-byte payload variant emitted
// by some newer firmwares: byte index 4 is spurious and must be dropped
// before the fixed layout applies. Any length other than 88 or 89 is a hard
// decode error; no further corrections are guessed at.
func normalize(payload []byte) ([]byte, error) {
	switch len(payload) {
	case payloadSize:
		return payload, nil
	case payloadSize + 1:
		fixed := make([]byte, 0, payloadSize)
		fixed = append(fixed, payload[:4]...)
		fixed = append(fixed, payload[5:]...)
		return fixed, nil
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}
}

// Decrypt unwraps a single raw report payload with the owner's private key
// and decodes the plaintext into a location fix. Backends default to
// DefaultBackends.
func Decrypt(payload, privateKey []byte, backends ...Backend) (PayloadData, error) {
	payload, err := normalize(payload)
	if err != nil {
		return PayloadData{}, err
	}

	seen := codec.Uint32BE(payload[:4])
	confidence := payload[4]
	ephemeralKey := payload[ephemeralKeyOffset:ciphertextOffset]
	ciphertext := payload[ciphertextOffset:tagOffset]
	tag := payload[tagOffset:payloadSize]

	shared, err := curve.SharedSecret(ephemeralKey, privateKey)
	if err != nil {
		return PayloadData{}, fmt.Errorf("failed to derive shared key: %w", err)
	}
	symmetric := DeriveKey(shared, ephemeralKey)

	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	plain, err := open(backends, symmetric[:16], symmetric[16:], ciphertext, tag)
	if err != nil {
		return PayloadData{}, err
	}
	if len(plain) != ciphertextSize {
		return PayloadData{}, fmt.Errorf("%w: %d plaintext bytes", ErrMalformedPayload, len(plain))
	}

	return PayloadData{
		Timestamp:         seenEpoch.Add(time.Duration(seen) * time.Second),
		Latitude:          wrapDegrees(float64(codec.Uint32BE(plain[:4]))/coordinateScale, 90),
		Longitude:         wrapDegrees(float64(codec.Uint32BE(plain[4:8]))/coordinateScale, 180),
		AccuracyMeters:    plain[8],
		ConfidencePercent: confidence,
		Battery:           batteryStatus(plain[9]),
	}, nil
}

// wrapDegrees folds coordinates encoded as large unsigned values back into
// the signed range. The offset is 0xFFFFFFFF/1e7 rather than 2^32/1e7,
// matching the encoder's arithmetic exactly.
func wrapDegrees(v, limit float64) float64 {
	const wrap = float64(0xFFFFFFFF) / coordinateScale
	if v > limit {
		return v - wrap
	}
	if v < -limit {
		return v + wrap
	}
	return v
}

// batteryStatus decodes the plaintext status byte. Zero means the tag sent
// no reading. Otherwise bits 6-7 carry the level.
func batteryStatus(status byte) BatteryStatus {
	if status == 0 {
		return BatteryUnknown
	}
	switch (status >> 6) & 0x03 {
	case 1:
		return BatteryOK
	case 2:
		return BatteryMedium
	case 3:
		return BatteryLow
	default:
		return BatteryCritical
	}
}
