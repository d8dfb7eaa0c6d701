package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json; charset=utf-8", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "finder", user)
		assert.Equal(t, "hunter2", pass)

		var body struct {
			IDs  []string `json:"ids"`
			Days int      `json:"days"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"id-one", "id-two"}, body.IDs)
		assert.Equal(t, 7, body.Days)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"id": "id-one", "payload": "AAAA", "datePublished": int64(1714557600000)},
			},
			"statusCode": "200",
		})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:  server.URL,
		Username: "finder",
		Password: "hunter2",
	})

	results, err := client.Fetch(context.Background(), []string{"id-one", "id-two"}, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "id-one", results[0].ID)
	assert.Equal(t, "AAAA", results[0].Payload)
	assert.Equal(t, int64(1714557600000), results[0].DatePublished)
}

func TestClientFetchNoCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok, "no authorization header expected")
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	results, err := client.Fetch(context.Background(), []string{"id"}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClientFetchStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrEndpointNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL})
			_, err := client.Fetch(context.Background(), []string{"id"}, 1)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClientFetchBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	_, err := client.Fetch(context.Background(), []string{"id"}, 1)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusForbidden, be.Status)
	assert.Equal(t, "nope", be.Body)
}

func TestClientFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 30 * time.Millisecond})
	_, err := client.Fetch(context.Background(), []string{"id"}, 1)
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestClientFetchRetriesTransientFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:       server.URL,
		Retries:       2,
		RetryInterval: time.Millisecond,
	})
	_, err := client.Fetch(context.Background(), []string{"id"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClientFetchDoesNotRetryPermanentFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:       server.URL,
		Retries:       3,
		RetryInterval: time.Millisecond,
	})
	_, err := client.Fetch(context.Background(), []string{"id"}, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls)
}

func TestClientFetchBodyStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}, "statusCode": "500"})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	_, err := client.Fetch(context.Background(), []string{"id"}, 1)

	var be *BackendError
	assert.ErrorAs(t, err, &be)
}
