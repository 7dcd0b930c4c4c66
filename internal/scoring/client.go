// Package scoring fetches current risk scores from the upstream scoring
// engine over HTTP. Transient failures are retried with backoff inside a
// single fetch; sustained failures trip a circuit breaker so a dead
// engine cannot stall the update loop.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/metrics"
	platformerrors "github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/errors"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/retry"
)

const (
	defaultTimeout     = 10 * time.Second
	breakerOpenTimeout = 30 * time.Second
	breakerMaxFailures = 5
)

type scoresResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// statusError distinguishes HTTP status failures for retry classification.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("scoring engine returned status %d", e.code)
}

// Client pulls score maps from the scoring engine.
type Client struct {
	httpClient *http.Client
	url        string
	breaker    *gobreaker.CircuitBreaker
	policy     retry.Policy
	clock      clockwork.Clock
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryPolicy overrides the per-fetch retry policy.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

func NewClient(url string, clock clockwork.Clock, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		url:        url,
		clock:      clock,
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   500 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Retrying score fetch", "attempt", attempt, "backoff", backoff, "error", err)
			},
			Clock: clock,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "scoring-engine",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// GetCurrentScores fetches the full score map. Scores are clamped to
// [0, 1]. Returns an external error when the engine is unreachable or the
// breaker is open.
func (c *Client) GetCurrentScores(ctx context.Context) (map[string]float64, error) {
	start := c.clock.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	metrics.ScoringFetchDuration.Observe(c.clock.Since(start).Seconds())

	if err != nil {
		metrics.ScoringFetchErrors.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, platformerrors.ExternalError("scoring engine circuit open", err)
		}
		return nil, platformerrors.ExternalError("failed to fetch scores", err)
	}
	return result.(map[string]float64), nil
}

func (c *Client) fetch(ctx context.Context) (map[string]float64, error) {
	return retry.Do(ctx, c.policy, classify, func() (map[string]float64, error) {
		return c.doRequest(ctx)
	})
}

func (c *Client) doRequest(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build scores request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	var parsed scoresResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode scores response: %w", err)
	}

	scores := make(map[string]float64, len(parsed.Scores))
	for id, score := range parsed.Scores {
		scores[id] = clamp(score)
	}
	return scores, nil
}

// classify maps fetch errors onto retry actions: server errors and
// network failures retry, throttling waits longer, anything else aborts.
func classify(err error) retry.Action {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return retry.After
		case se.code >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
