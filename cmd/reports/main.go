package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tagtrail/tagtrail/lib/device"
	"github.com/tagtrail/tagtrail/lib/reports"
)

func main() {
	endpoint := flag.String("endpoint", "http://localhost:6176", "Address of the report store")
	days := flag.Int("days", 7, "Number of days to retrieve reports for")
	user := flag.String("user", "", "Basic auth username for the report store")
	pass := flag.String("pass", "", "Basic auth password for the report store")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-request timeout")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] device.keys...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	devices := []device.Device{}
	for _, deviceFile := range flag.Args() {
		d, err := device.LoadFromFile(deviceFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", deviceFile).Msg("failed to load device")
		}
		devices = append(devices, *d)
	}
	if len(devices) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store := reports.NewClient(reports.ClientConfig{
		BaseURL:  *endpoint,
		Username: *user,
		Password: *pass,
		Timeout:  *timeout,
		Logger:   log.Logger,
	})
	fetcher := reports.NewFetcher(reports.FetcherConfig{
		Store:  store,
		Logger: log.Logger,
	})

	if err := run(fetcher, devices, *days); err != nil {
		log.Fatal().Err(err).Msg("failed to run")
	}
}

func run(fetcher *reports.Fetcher, devices []device.Device, days int) error {
	res, err := fetcher.Locate(context.Background(), devices, days)
	if err != nil {
		if !errors.Is(err, reports.ErrNothingFetched) {
			return err
		}
		log.Warn().Int("devices", len(devices)).Msg("no device query succeeded")
	}

	for _, f := range res.DeviceFailures {
		log.Warn().Err(f.Err).Str("device", f.Device).Msg("device query failed")
	}
	log.Info().
		Int("locations", len(res.Locations)).
		Int("deviceFailures", len(res.DeviceFailures)).
		Int("reportFailures", res.ReportFailures).
		Msg("batch finished")

	out, err := json.MarshalIndent(res.Locations, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal locations: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
