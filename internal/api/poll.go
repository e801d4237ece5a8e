package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ArmisSecurity/armis-sarif/internal/model"
)

// DefaultPollInterval is the wait between status checks.
const DefaultPollInterval = 5 * time.Second

// ErrPollTimeout is returned when a scan does not reach a terminal status
// within the poll bounds.
var ErrPollTimeout = errors.New("timed out waiting for scan to complete")

var errStillRunning = errors.New("scan still running")

// PollOptions bounds WaitForScan. A zero Timeout or MaxPolls leaves that
// bound off; at least one should be set.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	MaxPolls int
}

// WaitForScan polls statusURL, first immediately and then every Interval,
// until the scan reaches a terminal status. onStatus, when set, sees every
// response. The last status seen is returned together with ErrPollTimeout
// when a bound is hit. Cancelling ctx returns ctx.Err().
func (c *Client) WaitForScan(ctx context.Context, statusURL string, opts PollOptions, onStatus func(*model.StatusResponse)) (*model.StatusResponse, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if _, err := c.resolveStatusURL(statusURL); err != nil {
		return nil, fmt.Errorf("failed to get scan status: %w", err)
	}

	pollCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	var b backoff.BackOff = backoff.NewConstantBackOff(opts.Interval)
	if opts.MaxPolls > 0 {
		b = backoff.WithMaxRetries(b, uint64(opts.MaxPolls-1)) // #nosec G115 - MaxPolls is positive
	}

	var last *model.StatusResponse
	polls := 0
	start := time.Now()

	operation := func() error {
		polls++
		status, err := c.GetStatus(pollCtx, statusURL)
		if err != nil {
			if pollCtx.Err() != nil {
				return backoff.Permanent(pollCtx.Err())
			}
			return backoff.Permanent(err)
		}
		last = status
		c.logger.Debugf("poll %d: scan status %s", polls, status.Status)
		if onStatus != nil {
			onStatus(status)
		}
		if status.Status.IsTerminal() {
			return nil
		}
		return errStillRunning
	}

	err := backoff.Retry(operation, backoff.WithContext(b, pollCtx))
	if err == nil {
		return last, nil
	}
	if ctx.Err() != nil {
		return last, ctx.Err()
	}
	if errors.Is(err, errStillRunning) || pollCtx.Err() != nil {
		return last, fmt.Errorf("%w after %d polls (%s)", ErrPollTimeout, polls, time.Since(start).Round(time.Second))
	}
	return last, err
}
