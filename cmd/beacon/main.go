// Command beacon advertises a device's advertisement key as an Apple
// offline-finding BLE payload, turning the machine it runs on into a
// findable tag.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"

	"github.com/tagtrail/tagtrail/lib/device"
)

const appleCompanyID = 0x004c

func main() {
	interval := flag.Duration("interval", 2*time.Second, "Advertising interval")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] device.keys\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	d, err := device.LoadFromFile(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load device")
	}
	advKey, err := d.AdvertisementKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to derive advertisement key")
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		log.Fatal().Err(err).Msg("failed to enable BLE adapter")
	}

	adv := adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		Interval: bluetooth.NewDuration(*interval),
		ManufacturerData: []bluetooth.ManufacturerDataElement{
			{CompanyID: appleCompanyID, Data: offlineFindingPayload(advKey)},
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to configure advertisement")
	}
	if err := adv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start advertising")
	}

	log.Info().Str("device", d.Name).Msg("advertising")
	select {}
}

// offlineFindingPayload packs the 28-byte advertisement key into the Apple
// manufacturer-data frame. The first six key bytes normally travel in the
// BLE address, which most host stacks cannot set; scanners matching on the
// payload still recover bytes 6..28 plus the two spilled high bits.
func offlineFindingPayload(advKey []byte) []byte {
	payload := make([]byte, 0, 27)
	payload = append(payload, 0x12, 0x19) // offline finding type, length
	payload = append(payload, 0x00)       // status
	payload = append(payload, advKey[6:]...)
	payload = append(payload, advKey[0]>>6)
	payload = append(payload, 0x00) // hint
	return payload
}
