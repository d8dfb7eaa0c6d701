package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tagtrail/tagtrail/lib/codec"
	"github.com/tagtrail/tagtrail/lib/device"
)

func main() {
	name := flag.String("name", "", "Device name (required)")
	count := flag.Int("count", 1, "Number of devices to generate")
	exportJSON := flag.Bool("json", false, "Also write an OpenHaystack-importable JSON file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -name <device> [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	for i := 0; i < *count; i++ {
		deviceName := *name
		if *count > 1 {
			deviceName = fmt.Sprintf("%s-%d", *name, i+1)
		}

		d, err := device.Generate(deviceName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate device")
		}
		if err := d.SaveToFile(); err != nil {
			log.Fatal().Err(err).Msg("failed to save keyfile")
		}
		if *exportJSON {
			if err := saveDevice(deviceName, codec.ToBase64(d.PrivateKey)); err != nil {
				log.Fatal().Err(err).Msg("failed to save device JSON")
			}
		}

		hashed, err := d.HashedAdvertisementKey()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to derive hashed adv key")
		}
		log.Info().Str("device", deviceName).Str("hashedAdvKey", hashed).Msg("generated")
	}
}
