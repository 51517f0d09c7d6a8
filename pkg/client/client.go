// Package client performs scorecard lookups: one form submission per
// candidate key, parsed into a scorecard.Record.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the scorecard form endpoint.
const DefaultEndpoint = "https://neet.ntaonline.in/frontend/web/scorecard/index"

// Prometheus metrics for lookup operations.
var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scorecard_lookups_total",
		Help: "Total scorecard lookups by outcome (accepted, rejected, failed)",
	}, []string{"outcome"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scorecard_lookup_duration_seconds",
		Help:    "Scorecard lookup duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scorecard_lookup_errors_total",
		Help: "Total scorecard lookup errors by class",
	}, []string{"class"})

	lookupStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scorecard_lookup_status_total",
		Help: "Scorecard responses by HTTP status code",
	}, []string{"status"})
)

// Client submits scorecard forms.
// The underlying http.Client is shared by every concurrent lookup and is
// never mutated by one.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the absolute URL the form is posted to.
	Endpoint string

	// Token is the anti-forgery form token. It is bound to the session that
	// issued it and must be supplied by the operator.
	Token string

	// UserAgent header sent with every request (optional).
	UserAgent string

	// Timeout bounds one lookup, connection to body.
	Timeout time.Duration
}

// DefaultConfig returns a configuration for the public endpoint.
func DefaultConfig(token string) Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Token:    token,
		Timeout:  30 * time.Second,
	}
}

// New creates a new lookup client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("endpoint must be an absolute URL (got %q)", cfg.Endpoint)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "lookup-client").Logger(),
	}, nil
}

// Lookup performs one submission for key.
// Every failure resolves to ok == false; it never surfaces as an error.
func (c *Client) Lookup(ctx context.Context, key scorecard.CandidateKey) (scorecard.Record, bool) {
	rec, err := c.Fetch(ctx, key)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("identifier", key.Identifier).
			Int("year", key.Year).
			Int("month", key.Month).
			Int("day", key.Day).
			Msg("Lookup produced no result")
		return scorecard.EmptyRecord(), false
	}
	return rec, true
}

// Fetch performs one submission for key and returns the parsed record.
// Failures are returned as *LookupError.
func (c *Client) Fetch(ctx context.Context, key scorecard.CandidateKey) (scorecard.Record, error) {
	startTime := time.Now()
	defer func() {
		lookupDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint,
		strings.NewReader(key.Form(c.config.Token).Encode()))
	if err != nil {
		return c.fail(key, ErrorClassRequest, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(key, ErrorClassNetwork, err)
	}
	defer resp.Body.Close()

	lookupStatusTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	// A broken stream is a decode failure, not a truncated document.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(key, ErrorClassDecode, fmt.Errorf("read body: %w", err))
	}

	rec := scorecard.Parse(bytes.NewReader(body))

	outcome := "rejected"
	if rec.Accepted() {
		outcome = "accepted"
	}
	lookupsTotal.WithLabelValues(outcome).Inc()

	c.logger.Debug().
		Str("identifier", key.Identifier).
		Int("year", key.Year).
		Int("month", key.Month).
		Int("day", key.Day).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Bool("accepted", rec.Accepted()).
		Msg("Lookup completed")

	return rec, nil
}

func (c *Client) fail(key scorecard.CandidateKey, class ErrorClass, err error) (scorecard.Record, error) {
	lookupsTotal.WithLabelValues("failed").Inc()
	lookupErrorsTotal.WithLabelValues(string(class)).Inc()
	return scorecard.EmptyRecord(), &LookupError{Key: key, ErrorClass: class, Err: err}
}

// SetHTTPClient replaces the shared HTTP client, e.g. to install a custom
// transport or proxy.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
