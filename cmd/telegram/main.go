package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tagtrail/tagtrail/lib/device"
	"github.com/tagtrail/tagtrail/lib/reports"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	botAPIToken, ok := os.LookupEnv("TELEGRAM_API_TOKEN")
	if !ok {
		log.Fatal().Msg("TELEGRAM_API_TOKEN environment variable not set")
	}
	chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("TELEGRAM_CHAT_ID environment variable not set")
	}

	endpoint := flag.String("endpoint", "http://localhost:6176", "Address of the report store")
	days := flag.Int("days", 7, "Number of days to retrieve reports for")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] device.keys...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	devices := []device.Device{}
	for _, deviceFile := range flag.Args() {
		d, err := device.LoadFromFile(deviceFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", deviceFile).Msg("failed to load device")
		}
		devices = append(devices, *d)
	}

	store := reports.NewClient(reports.ClientConfig{
		BaseURL:  *endpoint,
		Username: os.Getenv("STORE_USER"),
		Password: os.Getenv("STORE_PASS"),
		Logger:   log.Logger,
	})
	fetcher := reports.NewFetcher(reports.FetcherConfig{Store: store, Logger: log.Logger})

	bot, err := tgbotapi.NewBotAPI(botAPIToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}
	bot.Debug = *debug

	run(bot, chatID, fetcher, devices, *days)
}

func run(bot *tgbotapi.BotAPI, chatID int64, fetcher *reports.Fetcher, devices []device.Device, days int) {
	deviceNames := make(map[string]device.Device, len(devices))
	for _, d := range devices {
		deviceNames[strings.ToLower(d.Name)] = d
	}

	handleMessages(bot, chatID, map[string]func(args string) error{
		"locate": func(args string) error {
			locateDevices := []device.Device{}
			if args == "" || args == "all" {
				locateDevices = devices
			} else if d, ok := deviceNames[args]; ok {
				locateDevices = append(locateDevices, d)
			} else {
				return fmt.Errorf("device(s) %s not found", args)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			res, err := fetcher.Locate(ctx, locateDevices, days)
			if err != nil && !errors.Is(err, reports.ErrNothingFetched) {
				return fmt.Errorf("failed to get reports: %w", err)
			}
			if len(res.Locations) == 0 {
				return errors.New("no reports found")
			}

			// locations come back sorted ascending, so the last one per
			// device is its freshest fix
			latest := map[string]reports.Location{}
			for _, loc := range res.Locations {
				latest[loc.Device] = loc
			}
			for _, loc := range latest {
				if _, err := bot.Send(tgbotapi.NewLocation(chatID, loc.Latitude, loc.Longitude)); err != nil {
					return fmt.Errorf("failed to send location: %w", err)
				}
				caption := fmt.Sprintf("[%s]: %s, accuracy %dm, battery %s",
					loc.Device, loc.Timestamp.Local(), loc.AccuracyMeters, loc.Battery)
				if _, err := bot.Send(tgbotapi.NewMessage(chatID, caption)); err != nil {
					return fmt.Errorf("failed to send caption: %w", err)
				}
			}
			return nil
		},
	})
}

func handleMessages(bot *tgbotapi.BotAPI, chatID int64, handlers map[string]func(args string) error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		command, args, _ := strings.Cut(update.Message.Text, " ")
		if handler, ok := handlers[strings.ToLower(strings.TrimSpace(command))]; ok {
			if err := handler(strings.ToLower(strings.TrimSpace(args))); err != nil {
				log.Error().Err(err).Str("command", command).Msg("failed to handle command")
				_, _ = bot.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Failed to handle command %s: %v", command, err)))
			}
		}
	}
}
