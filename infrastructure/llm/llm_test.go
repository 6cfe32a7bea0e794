package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGenerator(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		want       string
		wantStatus int
		wantErr    bool
	}{
		{name: "ok", status: http.StatusOK, body: `{"text":"hello"}`, want: "hello"},
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", wantErr: true, wantStatus: http.StatusBadGateway},
		{name: "malformed body", status: http.StatusOK, body: `{"text":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got generateRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gen := NewHTTPGenerator(srv.URL, time.Second)
			text, err := gen.Generate(context.Background(), "say hello")
			assert.Equal(t, "say hello", got.Prompt)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, text)
				return
			}
			require.Error(t, err)
			if tt.wantStatus != 0 {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
			}
		})
	}
}

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if !assert.Len(t, req.Messages, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "echo: " + req.Messages[0].Content}},
			},
		})
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("sk-test", "test-model", srv.URL)
	text, err := gen.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", text)
	assert.Equal(t, "openai", gen.Name())
}

type failingGenerator struct {
	calls int
}

func (g *failingGenerator) Generate(context.Context, string) (string, error) {
	g.calls++
	return "", errors.New("unavailable")
}

func (g *failingGenerator) Name() string { return "failing" }

func TestBreakerGenerator_Trips(t *testing.T) {
	next := &failingGenerator{}
	cfg := DefaultBreakerConfig()
	cfg.MinRequests = 3
	cfg.FailureThreshold = 1
	gen := NewBreakerGenerator(next, cfg, nil)

	for i := 0; i < 3; i++ {
		_, err := gen.Generate(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, gen.State())

	_, err := gen.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls, "an open breaker does not call the provider")
}
