// Package httpclient provides an HTTP client with retry and backoff support.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ServerError is returned when every attempt ended with a 5xx response.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Body)
}

// Config contains configuration options for the HTTP client.
type Config struct {
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	Timeout        time.Duration
	DisableTimeout bool
	// Transport overrides the default round tripper.
	Transport http.RoundTripper
	// OnRetry is called before each retry with the error that caused it.
	OnRetry func(err error, wait time.Duration)
}

// Client is an HTTP client with retry and backoff support.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 && !cfg.DisableTimeout {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = 1 * time.Second
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = 10 * time.Second
	}

	httpClient := &http.Client{Transport: cfg.Transport}
	if !cfg.DisableTimeout {
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Replayable reports whether req can be sent more than once. Requests with a
// body are only replayable when GetBody can regenerate it.
func Replayable(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	return req.GetBody != nil
}

// Do executes an HTTP request. Replayable requests are retried with
// exponential backoff on transport errors and 5xx responses; streamed bodies
// get a single attempt.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if !Replayable(req) {
		return c.httpClient.Do(req)
	}

	var resp *http.Response

	operation := func() error {
		// The body is consumed by each attempt.
		if req.GetBody != nil {
			newBody, bodyErr := req.GetBody()
			if bodyErr != nil {
				return backoff.Permanent(fmt.Errorf("failed to regenerate request body: %w", bodyErr))
			}
			req.Body = newBody
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		if r.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			_ = r.Body.Close() // #nosec G104 - error not critical in error path
			return &ServerError{StatusCode: r.StatusCode, Body: string(body)}
		}

		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryWaitMin
	b.MaxInterval = c.config.RetryWaitMax
	b.MaxElapsedTime = c.config.RetryWaitMax * time.Duration(c.config.RetryMax)

	ctx := req.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.RetryMax)), ctx) // #nosec G115 - RetryMax is small and positive

	var notify backoff.Notify
	if c.config.OnRetry != nil {
		notify = c.config.OnRetry
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return resp, nil
}
