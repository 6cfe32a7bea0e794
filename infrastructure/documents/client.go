// Package documents is the HTTP client for the tabular-document service
// that spreadsheet nodes publish to.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/frenb/accelent/application/ports"
	"go.uber.org/zap"
)

var _ ports.DocumentService = (*Client)(nil)

type createRequest struct {
	Title string      `json:"title"`
	Rows  []ports.Row `json:"rows"`
}

type createResponse struct {
	DocumentURL string `json:"documentUrl"`
}

// Client posts rows to the document service and returns the document URL.
// Server errors and transport failures are retried with exponential
// backoff; client errors are not.
type Client struct {
	url        string
	httpClient *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithMaxTries bounds the number of attempts per document
func WithMaxTries(n uint) Option {
	return func(cl *Client) { cl.maxTries = n }
}

// WithBackOff sets the retry schedule
func WithBackOff(f func() backoff.BackOff) Option {
	return func(cl *Client) { cl.newBackOff = f }
}

// WithLogger sets the client's logger
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient creates a client for the service at url
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxTries:   4,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateDocument uploads rows under title
func (c *Client) CreateDocument(ctx context.Context, title string, rows []ports.Row) (string, error) {
	body, err := json.Marshal(createRequest{Title: title, Rows: rows})
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}

	attempt := 0
	url, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		url, err := c.post(ctx, body)
		if err != nil {
			c.logger.Debug("Document request failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return url, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return "", err
	}

	c.logger.Info("Document created",
		zap.String("title", title),
		zap.Int("rows", len(rows)),
		zap.Int("attempts", attempt),
	)
	return url, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("document request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("document service returned status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", backoff.Permanent(fmt.Errorf("document service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	var out createResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if out.DocumentURL == "" {
		return "", backoff.Permanent(errors.New("document service returned no documentUrl"))
	}
	return out.DocumentURL, nil
}
