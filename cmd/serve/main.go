// Command serve exposes the report pipeline as a small JSON API for a map
// frontend: device listing and on-demand location batches.
package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tagtrail/tagtrail/lib/device"
	"github.com/tagtrail/tagtrail/lib/reports"
)

type config struct {
	ListenAddr  string
	StoreURL    string
	StoreUser   string
	StorePass   string
	KeysDir     string
	DefaultDays int
}

func loadConfig() config {
	_ = godotenv.Load()
	cfg := config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		StoreURL:    envOr("STORE_URL", "http://localhost:6176"),
		StoreUser:   os.Getenv("STORE_USER"),
		StorePass:   os.Getenv("STORE_PASS"),
		KeysDir:     envOr("KEYS_DIR", "."),
		DefaultDays: 7,
	}
	if v, err := strconv.Atoi(os.Getenv("DEFAULT_DAYS")); err == nil && v > 0 {
		cfg.DefaultDays = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg := loadConfig()

	devices, err := device.LoadDir(cfg.KeysDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.KeysDir).Msg("failed to load devices")
	}
	if len(devices) == 0 {
		log.Warn().Str("dir", cfg.KeysDir).Msg("no keyfiles found")
	}

	store := reports.NewClient(reports.ClientConfig{
		BaseURL:  cfg.StoreURL,
		Username: cfg.StoreUser,
		Password: cfg.StorePass,
		Logger:   log.Logger,
	})
	fetcher := reports.NewFetcher(reports.FetcherConfig{Store: store, Logger: log.Logger})

	srv := &server{
		devices:     devices,
		fetcher:     fetcher,
		defaultDays: cfg.DefaultDays,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(30, time.Minute))

	r.Get("/healthz", srv.handleHealth)
	r.Get("/api/devices", srv.handleDevices)
	r.Get("/api/locations", srv.handleLocations)

	log.Info().Str("addr", cfg.ListenAddr).Int("devices", len(devices)).Msg("listening")
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// requestLogger emits one structured event per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("requestId", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
