// Package client talks to the robot status API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/types"
)

// Client wraps resty with retries and client-side rate limiting
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.resty.SetTimeout(d) }
}

// WithRetry configures retries of failed requests.
func WithRetry(maxRetries int, minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.resty.SetRetryCount(maxRetries).
			SetRetryWaitTime(minWait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// WithRateLimit caps outgoing requests per second. Zero means unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	transport := retryablehttp.NewClient().HTTPClient.Transport

	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("User-Agent", "robotdriver-client/1.0").
		SetTransport(transport).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// 503 means "not ready yet", which a retry will not fix quickly.
			return err != nil || resp.StatusCode() >= 500 && resp.StatusCode() != http.StatusServiceUnavailable
		})

	c := &Client{resty: r, limiter: rate.NewLimiter(rate.Inf, 0)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return c.resty.R().SetContext(ctx), nil
}

// Ready asks whether the consumer behind the API is ready.
func (c *Client) Ready(ctx context.Context) (types.ReadyResponse, error) {
	var out types.ReadyResponse
	req, err := c.request(ctx)
	if err != nil {
		return out, err
	}
	resp, err := req.SetResult(&out).SetError(&types.ErrorResponse{}).Get("/v1/robot/ready")
	if err != nil {
		return out, fmt.Errorf("ready request failed: %w", err)
	}
	if resp.IsError() {
		return out, apiError(resp)
	}
	return out, nil
}

// State fetches a full snapshot. While the robot is not ready the error
// matches driver.ErrNotReady.
func (c *Client) State(ctx context.Context) (types.StateResponse, error) {
	var out types.StateResponse
	req, err := c.request(ctx)
	if err != nil {
		return out, err
	}
	resp, err := req.SetResult(&out).SetError(&types.ErrorResponse{}).Get("/v1/robot/state")
	if err != nil {
		return out, fmt.Errorf("state request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		nr := &driver.NotReadyError{Role: "api", Op: "State"}
		if e, ok := resp.Error().(*types.ErrorResponse); ok {
			nr.Missing = e.Missing
		}
		return out, nr
	}
	if resp.IsError() {
		return out, apiError(resp)
	}
	return out, nil
}

// SendTarget submits a joint target.
func (c *Client) SendTarget(ctx context.Context, positions []float64) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetBody(types.TargetRequest{Positions: positions}).
		SetError(&types.ErrorResponse{}).
		Post("/v1/robot/target")
	if err != nil {
		return fmt.Errorf("target request failed: %w", err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *resty.Response) error {
	if e, ok := resp.Error().(*types.ErrorResponse); ok && e.Error != "" {
		return fmt.Errorf("api returned %d: %s", resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("api returned %d", resp.StatusCode())
}
