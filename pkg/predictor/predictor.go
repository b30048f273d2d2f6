// Package predictor adapts the external ML batch-inference collaborator.
//
// The collaborator periodically scores every listed company offline; this
// package fetches those results on demand. Its output is advisory:
// scoring surfaces it as an independent detail and never blends it into
// the rule-based total.
package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// Config sizes the HTTP client and its circuit breaker.
type Config struct {
	// BaseURL is the inference service root, e.g. "http://predictor:8600".
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds one request.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries bounds transient-failure retries per call.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base backoff delay, doubled per attempt.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// BreakerInterval and BreakerTimeout configure the circuit breaker's
	// counting window and open-state cool-off.
	BreakerInterval time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// DefaultConfig returns client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		RetryDelay:      200 * time.Millisecond,
		BreakerInterval: 60 * time.Second,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client fetches predictions over HTTP with bounded retries behind a
// circuit breaker. Exhausted retries and an open breaker both surface as
// UpstreamUnavailableError so callers degrade instead of failing.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	cfg     Config
	logger  *slog.Logger
}

// NewClient creates a predictor client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("predictor base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("predictor base url: %w", err)
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = defaults.BreakerInterval
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:     "predictor",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("predictor circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Predict fetches the latest batch prediction for one company.
func (c *Client) Predict(ctx context.Context, companyID string) (*types.Prediction, error) {
	var lastErr error
	delay := c.cfg.RetryDelay
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		resp, err := c.cb.Execute(func() (interface{}, error) {
			return c.fetch(ctx, companyID)
		})
		if err == nil {
			return resp.(*types.Prediction), nil
		}
		// A missing prediction is a fact, not an outage.
		if errors.Is(err, &types.NotFoundError{}) {
			return nil, err
		}
		lastErr = err
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			break
		}
	}
	return nil, &types.UpstreamUnavailableError{Upstream: "predictor", Err: lastErr}
}

func (c *Client) fetch(ctx context.Context, companyID string) (*types.Prediction, error) {
	endpoint := fmt.Sprintf("%s/predictions/%s", c.baseURL, url.PathEscape(companyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &types.NotFoundError{Kind: "prediction", ID: companyID}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("predictor returned %d: %s", resp.StatusCode, string(body))
	}

	var prediction types.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if prediction.CompanyID == "" {
		prediction.CompanyID = companyID
	}
	return &prediction, nil
}

// Static serves predictions from an in-memory table, for tests and for
// deployments that import the collaborator's batch output directly.
type Static struct {
	byCompany map[string]types.Prediction
}

// NewStatic creates a Static provider over the given predictions.
func NewStatic(predictions []types.Prediction) *Static {
	byCompany := make(map[string]types.Prediction, len(predictions))
	for _, p := range predictions {
		byCompany[p.CompanyID] = p
	}
	return &Static{byCompany: byCompany}
}

// Predict implements the provider contract.
func (s *Static) Predict(_ context.Context, companyID string) (*types.Prediction, error) {
	p, ok := s.byCompany[companyID]
	if !ok {
		return nil, &types.NotFoundError{Kind: "prediction", ID: companyID}
	}
	return &p, nil
}
