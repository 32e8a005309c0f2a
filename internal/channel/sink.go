package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sink delivers one event to its final destination.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// HTTPSink posts each event as JSON to a collector endpoint.
type HTTPSink struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPSink(endpoint, apiKey string, timeout time.Duration) (*HTTPSink, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("channel: http sink endpoint is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("channel: encode event %s: %w", ev.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("channel: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("channel: post event %s: %w", ev.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("channel: post event %s: status %d", ev.ID, resp.StatusCode)
	}
	return nil
}

// LogSink writes each event to a logger. Useful when no collector is configured.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Deliver(_ context.Context, ev Event) error {
	s.Logger.Info().
		Str("message_id", ev.ID).
		Str("token", ev.Token).
		Str("event", ev.Name).
		Interface("properties", ev.Properties).
		Msg("event")
	return nil
}
