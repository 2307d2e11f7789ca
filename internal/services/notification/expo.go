package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog"

	"spicam-server/internal/clock"
)

const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

type expoMessage struct {
	To    string         `json:"to"`
	Sound string         `json:"sound"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
}

// ExpoSink pushes notifications to every registered device via Expo's push
// API. Requests are paced by a token bucket.
type ExpoSink struct {
	url    string
	client *http.Client
	tokens *TokenStore
	bucket *ratelimit.Bucket
	clock  clock.Clock
	logger zerolog.Logger
}

func NewExpoSink(url string, tokens *TokenStore, timeout time.Duration, ratePerSecond float64, clk clock.Clock, logger zerolog.Logger) *ExpoSink {
	if url == "" {
		url = DefaultExpoPushURL
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	capacity := int64(ratePerSecond)
	if capacity < 1 {
		capacity = 1
	}
	return &ExpoSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		tokens: tokens,
		bucket: ratelimit.NewBucketWithRateAndClock(ratePerSecond, capacity, clk),
		clock:  clk,
		logger: logger,
	}
}

func (s *ExpoSink) Name() string { return "expo" }

func (s *ExpoSink) Deliver(ctx context.Context, n Notification) error {
	if !n.Pushable() {
		return nil
	}
	tokens := s.tokens.List()
	if len(tokens) == 0 {
		s.logger.Debug().Str("title", n.Title).Msg("No push tokens registered, skipping push")
		return nil
	}

	if wait := s.bucket.Take(1); wait > 0 {
		if err := clock.SleepContext(ctx, s.clock, wait); err != nil {
			return err
		}
	}

	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	msgs := make([]expoMessage, 0, len(tokens))
	for _, tok := range tokens {
		msgs = append(msgs, expoMessage{To: tok, Sound: "default", Title: n.Title, Body: n.Body, Data: data})
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("expo push failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("expo push returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	s.logger.Info().
		Str("title", n.Title).
		Int("tokens", len(tokens)).
		Msg("Push notification sent")
	return nil
}
