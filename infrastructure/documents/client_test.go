package documents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/frenb/accelent/application/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestClient_CreateDocument(t *testing.T) {
	var got createRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"documentUrl":"https://docs.example.com/d/1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackOff(fastBackOff))
	url, err := c.CreateDocument(context.Background(), "report", []ports.Row{{"a": 1}})
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/d/1", url)
	assert.Equal(t, "report", got.Title)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, float64(1), got.Rows[0]["a"])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"documentUrl":"https://docs.example.com/d/2"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackOff(fastBackOff), WithMaxTries(5))
	url, err := c.CreateDocument(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/d/2", url)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad request", http.StatusBadRequest, "rows must not be empty"},
		{"missing url", http.StatusOK, `{}`},
		{"malformed body", http.StatusOK, `{"documentUrl":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, WithBackOff(fastBackOff), WithMaxTries(5))
			_, err := c.CreateDocument(context.Background(), "t", nil)
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackOff(fastBackOff), WithMaxTries(3))
	_, err := c.CreateDocument(context.Background(), "t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(3), calls.Load())
}
