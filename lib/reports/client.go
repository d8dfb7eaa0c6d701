package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Report store outcomes, one per network failure class. Per-device, never
// fatal to a batch.
var (
	ErrUnauthorized     = errors.New("reports: store rejected credentials")
	ErrEndpointNotFound = errors.New("reports: store endpoint not found")
	ErrRequestTimeout   = errors.New("reports: store request timed out")
)

// BackendError is any other non-200 store response.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("reports: store returned %d: %s", e.Status, e.Body)
}

// RawReport is one encrypted report blob as the store returns it. Opaque
// until decrypted; consumed once.
type RawReport struct {
	ID            string `json:"id"`
	Payload       string `json:"payload"`
	DatePublished int64  `json:"datePublished"` // unix milliseconds
	Description   string `json:"description"`
	StatusCode    int64  `json:"statusCode"`
}

// Store fetches raw reports for a set of hashed advertisement keys over a
// day window.
type Store interface {
	Fetch(ctx context.Context, ids []string, days int) ([]RawReport, error)
}

// ClientConfig configures the report store HTTP client.
type ClientConfig struct {
	// BaseURL is the store endpoint, e.g. a macless-haystack server.
	BaseURL string

	// Username and Password are passed through as HTTP basic credentials
	// when set.
	Username string
	Password string

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// Retries is how many times a transient failure (network error, 5xx)
	// is retried with exponential backoff. Default: no retries.
	Retries uint64

	// RetryInterval is the initial backoff interval (default: 250ms).
	RetryInterval time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	// Logger for request diagnostics.
	Logger zerolog.Logger
}

// Client queries a report store with POST {ids, days} requests.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Fetch queries the store once, retrying only transient failures.
// Credential and endpoint errors are permanent, as is a timeout: the
// request budget is the timeout itself.
func (c *Client) Fetch(ctx context.Context, ids []string, days int) ([]RawReport, error) {
	body, err := json.Marshal(map[string]interface{}{
		"ids":  ids,
		"days": days,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.Retries), ctx)

	return backoff.RetryWithData(func() ([]RawReport, error) {
		results, err := c.fetchOnce(ctx, body)
		switch {
		case err == nil:
			return results, nil
		case errors.Is(err, ErrUnauthorized),
			errors.Is(err, ErrEndpointNotFound),
			errors.Is(err, ErrRequestTimeout):
			return nil, backoff.Permanent(err)
		}
		var be *BackendError
		if errors.As(err, &be) && be.Status < 500 {
			return nil, backoff.Permanent(err)
		}
		c.cfg.Logger.Warn().Err(err).Msg("transient store failure")
		return nil, err
	}, policy)
}

func (c *Client) fetchOnce(ctx context.Context, body []byte) ([]RawReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrRequestTimeout
		}
		return nil, fmt.Errorf("failed to make POST request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrEndpointNotFound
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &BackendError{Status: resp.StatusCode, Body: string(b)}
	}

	response := struct {
		Results    []RawReport `json:"results"`
		StatusCode string      `json:"statusCode"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	// macless-haystack tunnels its own status through the body
	if response.StatusCode != "" && response.StatusCode != "200" {
		return nil, &BackendError{Status: resp.StatusCode, Body: response.StatusCode}
	}
	return response.Results, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
