package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tagtrail/tagtrail/lib/device"
	"github.com/tagtrail/tagtrail/lib/reports"
)

type server struct {
	devices     []device.Device
	fetcher     *reports.Fetcher
	defaultDays int
}

type deviceInfo struct {
	Name         string `json:"name"`
	HashedAdvKey string `json:"hashedAdvKey"`
}

type locationsResponse struct {
	Locations      []reports.Location `json:"locations"`
	DeviceFailures int                `json:"deviceFailures"`
	ReportFailures int                `json:"reportFailures"`
	NothingFetched bool               `json:"nothingFetched"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	infos := make([]deviceInfo, 0, len(s.devices))
	for _, d := range s.devices {
		hashed, err := d.HashedAdvertisementKey()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		infos = append(infos, deviceInfo{Name: d.Name, HashedAdvKey: hashed})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *server) handleLocations(w http.ResponseWriter, r *http.Request) {
	days := s.defaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("days must be a positive integer"))
			return
		}
		days = parsed
	}

	devices := s.devices
	if name := r.URL.Query().Get("device"); name != "" {
		devices = nil
		for _, d := range s.devices {
			if d.Name == name {
				devices = append(devices, d)
			}
		}
		if len(devices) == 0 {
			writeError(w, http.StatusNotFound, errors.New("unknown device"))
			return
		}
	}

	res, err := s.fetcher.Locate(r.Context(), devices, days)
	nothingFetched := errors.Is(err, reports.ErrNothingFetched)
	if err != nil && !nothingFetched {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, locationsResponse{
		Locations:      res.Locations,
		DeviceFailures: len(res.DeviceFailures),
		ReportFailures: res.ReportFailures,
		NothingFetched: nothingFetched,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
