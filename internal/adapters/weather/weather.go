// Package weather fetches the outdoor temperature from an HTTP endpoint.
// It is a soft dependency: every failure is substituted with the last
// good value or a configured constant, never surfaced to the sampler.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkorunic/rpi-home-sensors/internal/backoff"
)

type Options struct {
	// URL is optional; empty means the fallback constant is always used.
	URL       string
	FallbackC float64
	// Refresh caps how often the endpoint is hit; between refreshes the
	// cached value is served.
	Refresh time.Duration
	Timeout time.Duration
}

// Client is not safe for concurrent use; the sampling loop is its only
// caller.
type Client struct {
	opts      Options
	http      *http.Client
	policy    *backoff.Policy
	fallbacks prometheus.Counter
	log       *slog.Logger

	last      float64
	haveLast  bool
	lastFetch time.Time
	retryAt   time.Time
}

// New builds a client. fallbacks may be nil; pol supplies the delay
// between fetch attempts after a failure.
func New(opts Options, pol *backoff.Policy, fallbacks prometheus.Counter, log *slog.Logger) *Client {
	return &Client{
		opts:      opts,
		http:      &http.Client{Timeout: opts.Timeout},
		policy:    pol,
		fallbacks: fallbacks,
		log:       log,
	}
}

// Current returns the outdoor temperature in degrees Celsius. The second
// return is true when the configured fallback constant was used rather
// than live or cached data.
func (c *Client) Current(ctx context.Context) (float64, bool) {
	if c.opts.URL == "" {
		return c.constant()
	}

	now := time.Now()
	if c.haveLast && now.Sub(c.lastFetch) < c.opts.Refresh {
		return c.last, false
	}
	if now.Before(c.retryAt) {
		return c.degraded()
	}

	v, err := c.fetch(ctx)
	if err != nil {
		delay := c.policy.Next()
		c.retryAt = now.Add(delay)
		c.log.Warn("weather fetch failed", "error", err, "retry_in", delay)
		return c.degraded()
	}

	c.policy.Reset()
	c.last, c.haveLast, c.lastFetch = v, true, now
	return v, false
}

// degraded serves the cached value when one exists, the constant otherwise.
func (c *Client) degraded() (float64, bool) {
	if c.haveLast {
		return c.last, false
	}
	return c.constant()
}

func (c *Client) constant() (float64, bool) {
	if c.fallbacks != nil {
		c.fallbacks.Inc()
	}
	return c.opts.FallbackC, true
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	// Open-Meteo style payload.
	var payload struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
		} `json:"current_weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return payload.CurrentWeather.Temperature, nil
}
