// Package reports implements the location report pipeline: fetching
// encrypted report blobs from a report store, the per-report ECDH exchange
// and key derivation, authenticated decryption, and the fixed binary
// layouts on both sides of it.
package reports

import (
	"errors"
	"time"
)

var (
	// ErrAuthentication means the GCM tag did not verify: the report was
	// tampered with or decrypted with the wrong key. Treated as "cannot
	// decrypt", not as an incident.
	ErrAuthentication = errors.New("reports: message authentication failed")

	// ErrNoBackend means every decryption backend failed with an
	// implementation error before authentication could be attempted.
	ErrNoBackend = errors.New("reports: no decryption backend available")

	// ErrMalformedPayload covers unexpected lengths at any framing stage.
	ErrMalformedPayload = errors.New("reports: malformed payload")
)

// BatteryStatus is the coarse charge level a tag reports alongside its
// position. Unknown means the status byte carried no reading, which is
// normal for many tags, not an error.
type BatteryStatus string

const (
	BatteryOK       BatteryStatus = "ok"
	BatteryMedium   BatteryStatus = "medium"
	BatteryLow      BatteryStatus = "low"
	BatteryCritical BatteryStatus = "critical"
	BatteryUnknown  BatteryStatus = "unknown"
)

// PayloadData is one decrypted location fix. Immutable once produced.
type PayloadData struct {
	Timestamp         time.Time     `json:"timestamp"`
	Latitude          float64       `json:"latitude"`
	Longitude         float64       `json:"longitude"`
	AccuracyMeters    uint8         `json:"accuracyMeters"`
	ConfidencePercent uint8         `json:"confidencePercent"`
	Battery           BatteryStatus `json:"battery"`
}

// Location is a decrypted fix attributed to its source device.
type Location struct {
	Device   string `json:"device"`
	DeviceID string `json:"deviceId"`
	PayloadData
	Published time.Time `json:"published"`
}
