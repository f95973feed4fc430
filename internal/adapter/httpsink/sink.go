// Package httpsink delivers the region records of a run to an HTTP endpoint.
package httpsink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/filesink"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Sink POSTs the JSON array of records to an endpoint.
type Sink struct {
	endpoint   string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an HTTP sink. Network errors and 5xx responses are retried up
// to maxRetries times with exponential backoff.
func New(endpoint string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Sink {
	return &Sink{
		endpoint:   endpoint,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Load sends records in the same document format as the JSON file. Any
// non-2xx response is an error.
func (s *Sink) Load(ctx context.Context, records []domain.RegionRecord) error {
	body, err := filesink.Marshal(records)
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		retryable, err := s.post(ctx, body)
		if err == nil {
			s.logger.Info("delivered region records", "endpoint", s.endpoint, "count", len(records), "attempts", attempt+1)
			return nil
		}
		if !retryable || attempt >= s.maxRetries {
			return err
		}
		s.logger.Warn("egress delivery failed, retrying", "endpoint", s.endpoint, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("%w (retry aborted: %w)", err, ctx.Err())
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
}

// post sends one request and reports whether a failure is worth retrying.
func (s *Sink) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("post %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode >= 500, fmt.Errorf("post %s: status %d: %s", s.endpoint, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return false, nil
}
