package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tagtrail/tagtrail/lib/codec"
	"github.com/tagtrail/tagtrail/lib/device"
)

// ErrNothingFetched distinguishes "every device query failed" from a batch
// that genuinely found no reports.
var ErrNothingFetched = errors.New("reports: no device query succeeded")

// DeviceFailure records one device whose store query failed. The batch
// carries on without it.
type DeviceFailure struct {
	Device string
	Err    error
}

// Result holds everything one batch run produced. Locations are sorted
// ascending by timestamp; reports with equal timestamps keep their input
// order.
type Result struct {
	Locations      []Location
	DeviceFailures []DeviceFailure
	ReportFailures int
}

// FetcherConfig configures a batch fetcher.
type FetcherConfig struct {
	// Store is the report store to query.
	Store Store

	// Backends overrides the decryption backend chain (default:
	// DefaultBackends).
	Backends []Backend

	// Concurrency bounds parallel device queries (default: 4).
	Concurrency int

	// Logger for per-report and per-device diagnostics.
	Logger zerolog.Logger
}

// Fetcher fans a time-windowed query out to every active device, decrypts
// whatever comes back with the owning device's key, and aggregates the
// results. All state lives in the one Locate call; a Fetcher is safe for
// concurrent use.
type Fetcher struct {
	store    Store
	backends []Backend
	limit    int
	log      zerolog.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 4
	}
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	return &Fetcher{
		store:    cfg.Store,
		backends: backends,
		limit:    limit,
		log:      cfg.Logger,
	}
}

// Locate fetches and decrypts all reports for the given devices over the
// day window. Identity derivation failures abort the batch, since nothing
// can be queried without the hashed keys. Per-device and per-report
// failures are counted and logged; siblings always complete. When every
// device query fails the partial result is returned with ErrNothingFetched.
func (f *Fetcher) Locate(ctx context.Context, devices []device.Device, days int) (Result, error) {
	ids := make([]string, len(devices))
	byID := make(map[string]int, len(devices))
	for i, d := range devices {
		id, err := d.HashedAdvertisementKey()
		if err != nil {
			return Result{}, fmt.Errorf("failed to derive id for device %s: %w", d.Name, err)
		}
		ids[i] = id
		byID[id] = i
	}

	type slot struct {
		locations      []Location
		failure        *DeviceFailure
		reportFailures int
	}
	slots := make([]slot, len(devices))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)
	for i := range devices {
		i := i
		g.Go(func() error {
			d, id := devices[i], ids[i]
			raw, err := f.store.Fetch(ctx, []string{id}, days)
			if err != nil {
				f.log.Warn().Err(err).Str("device", d.Name).Msg("device query failed")
				slots[i].failure = &DeviceFailure{Device: d.Name, Err: err}
				return nil
			}
			for _, r := range raw {
				owner := d
				if r.ID != "" && r.ID != id {
					// store replies are tagged with the hashed id they
					// matched; resolve cross-device responses
					j, ok := byID[r.ID]
					if !ok {
						f.log.Warn().Str("id", r.ID).Msg("report for unknown device")
						slots[i].reportFailures++
						continue
					}
					owner = devices[j]
				}
				loc, err := decryptRaw(r, owner, f.backends)
				if err != nil {
					f.log.Warn().Err(err).Str("device", owner.Name).Msg("failed to decrypt report")
					slots[i].reportFailures++
					continue
				}
				slots[i].locations = append(slots[i].locations, loc)
			}
			return nil
		})
	}
	// join point: the sort below must not start before every decryption
	// attempt has finished
	_ = g.Wait()

	var res Result
	for i := range slots {
		res.Locations = append(res.Locations, slots[i].locations...)
		res.ReportFailures += slots[i].reportFailures
		if slots[i].failure != nil {
			res.DeviceFailures = append(res.DeviceFailures, *slots[i].failure)
		}
	}
	sort.SliceStable(res.Locations, func(a, b int) bool {
		return res.Locations[a].Timestamp.Before(res.Locations[b].Timestamp)
	})

	if len(devices) > 0 && len(res.DeviceFailures) == len(devices) {
		return res, ErrNothingFetched
	}
	return res, nil
}

func decryptRaw(r RawReport, owner device.Device, backends []Backend) (Location, error) {
	payload, err := codec.FromBase64(r.Payload)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	data, err := Decrypt(payload, owner.PrivateKey, backends...)
	if err != nil {
		return Location{}, err
	}
	id, err := owner.HashedAdvertisementKey()
	if err != nil {
		return Location{}, err
	}
	return Location{
		Device:      owner.Name,
		DeviceID:    id,
		PayloadData: data,
		Published:   time.UnixMilli(r.DatePublished).UTC(),
	}, nil
}
