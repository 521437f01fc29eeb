// Package remote implements the strategy evaluator boundary over HTTP, for
// deployments where the simulation engine runs as a separate service.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"

	"github.com/ezquant/azvalid/azvalid"
)

const defaultMaxAttempts = 3

// Client calls a remote evaluator service. Transient transport failures and
// 5xx responses are retried with jittered backoff; that retry policy lives
// here at the evaluator boundary, the validation core itself never retries.
// A non-retryable response surfaces as an error and aborts the run.
type Client struct {
	http        *resty.Client
	maxAttempts int
}

type Option func(*Client)

// WithTimeout bounds each evaluation call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// WithMaxAttempts sets how many times a transient failure is retried.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// NewClient creates a client for an evaluator service at baseURL.
func NewClient(baseURL string, options ...Option) *Client {
	client := &Client{
		http:        resty.New().SetBaseURL(baseURL).SetTimeout(2 * time.Minute),
		maxAttempts: defaultMaxAttempts,
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Evaluate implements azvalid.Evaluator.
func (c *Client) Evaluate(ctx context.Context, req azvalid.EvalRequest) (*azvalid.EvalResult, error) {
	retry := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var out azvalid.EvalResult
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/evaluate")

		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode() >= 500:
			lastErr = fmt.Errorf("evaluator returned %s", resp.Status())
		case resp.IsError():
			return nil, fmt.Errorf("evaluator rejected request: %s: %s", resp.Status(), resp.String())
		default:
			return &out, nil
		}

		if attempt < c.maxAttempts {
			wait := retry.Duration()
			log.Warnf("[REMOTE] evaluation attempt %d/%d failed: %v, retrying in %s",
				attempt, c.maxAttempts, lastErr, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("evaluator unreachable after %d attempts: %w", c.maxAttempts, lastErr)
}
