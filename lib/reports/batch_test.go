package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagtrail/tagtrail/lib/device"
)

// Second report for the same owner key, 90 minutes after the first.
const vecPayload2B64 = "LcOSuEAERvuOwfKwqVcZTTUoomdsiRE/rWMqupJdEgZFgFl+jgMEg8idKjq0E/OpXoyQw8pmUS19sbcTaFigNKgvAoPjuzLdm2wo2SCj1OQ/RwqLKVAkGw=="

const (
	hashedKey1 = "zHQRWPI3avSLEh/cxkf5plDP2II/3Gam4TB5s0OnOnU="
	hashedKey2 = "A54X6pksd1eFVvJ7Tf5F1Q+35/ZdYwuArt1SIXLWb4M="
)

type fakeStore struct {
	responses map[string][]RawReport
	errs      map[string]error
}

func (f *fakeStore) Fetch(_ context.Context, ids []string, _ int) ([]RawReport, error) {
	id := ids[0]
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.responses[id], nil
}

func testDevices(t *testing.T) []device.Device {
	t.Helper()
	return []device.Device{
		{Name: "pebble", PrivateKey: mustHex(t, "b1410e519e0f7298e5675c6678975d8009c8061b8341a8f352e64a85")},
		{Name: "wallet", PrivateKey: mustHex(t, "8f7e2354579597ac32340d549758d7310b1a8780c48a684cac336fff")},
	}
}

func TestLocateAggregatesPartialResults(t *testing.T) {
	devices := testDevices(t)
	store := &fakeStore{
		responses: map[string][]RawReport{
			// later report listed first; the sort must fix the order
			hashedKey1: {
				{ID: hashedKey1, Payload: vecPayload2B64, DatePublished: 1746100000000},
				{ID: hashedKey1, Payload: vecPayloadB64, DatePublished: 1746090000000},
			},
		},
		errs: map[string]error{hashedKey2: ErrEndpointNotFound},
	}

	f := NewFetcher(FetcherConfig{Store: store})
	res, err := f.Locate(context.Background(), devices, 7)
	require.NoError(t, err)

	require.Len(t, res.Locations, 2)
	first, second := res.Locations[0], res.Locations[1]

	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), first.Timestamp)
	assert.InDelta(t, 37.7749, first.Latitude, 1e-6)
	assert.Equal(t, "pebble", first.Device)
	assert.Equal(t, hashedKey1, first.DeviceID)
	assert.Equal(t, time.UnixMilli(1746090000000).UTC(), first.Published)

	assert.Equal(t, time.Date(2025, 5, 1, 11, 30, 0, 0, time.UTC), second.Timestamp)
	assert.InDelta(t, 48.8566, second.Latitude, 1e-6)
	assert.InDelta(t, 2.3522, second.Longitude, 1e-6)
	assert.Equal(t, uint8(7), second.AccuracyMeters)
	assert.Equal(t, uint8(64), second.ConfidencePercent)
	assert.Equal(t, BatteryMedium, second.Battery)

	require.Len(t, res.DeviceFailures, 1)
	assert.Equal(t, "wallet", res.DeviceFailures[0].Device)
	assert.ErrorIs(t, res.DeviceFailures[0].Err, ErrEndpointNotFound)
	assert.Zero(t, res.ReportFailures)
}

func TestLocateCountsReportFailures(t *testing.T) {
	devices := testDevices(t)
	store := &fakeStore{
		responses: map[string][]RawReport{
			hashedKey1: {
				{ID: hashedKey1, Payload: vecPayloadB64},
				{ID: hashedKey1, Payload: "dG9vIHNob3J0"}, // wrong length
				{ID: hashedKey1, Payload: "!!! not base64"},
			},
			hashedKey2: {},
		},
	}

	f := NewFetcher(FetcherConfig{Store: store})
	res, err := f.Locate(context.Background(), devices, 1)
	require.NoError(t, err)
	assert.Len(t, res.Locations, 1)
	assert.Equal(t, 2, res.ReportFailures)
	assert.Empty(t, res.DeviceFailures)
}

func TestLocateNothingFetched(t *testing.T) {
	devices := testDevices(t)
	store := &fakeStore{
		errs: map[string]error{
			hashedKey1: ErrRequestTimeout,
			hashedKey2: ErrEndpointNotFound,
		},
	}

	f := NewFetcher(FetcherConfig{Store: store})
	res, err := f.Locate(context.Background(), devices, 1)
	assert.ErrorIs(t, err, ErrNothingFetched)
	assert.Empty(t, res.Locations)
	assert.Len(t, res.DeviceFailures, 2)
}

func TestLocateAbortsOnIdentityFailure(t *testing.T) {
	devices := []device.Device{{Name: "broken", PrivateKey: []byte{1, 2, 3}}}

	f := NewFetcher(FetcherConfig{Store: &fakeStore{}})
	_, err := f.Locate(context.Background(), devices, 1)
	assert.Error(t, err)
}

func TestLocateEmptyDeviceList(t *testing.T) {
	f := NewFetcher(FetcherConfig{Store: &fakeStore{}})
	res, err := f.Locate(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Locations)
}
