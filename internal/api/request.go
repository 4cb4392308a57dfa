package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// maxBodySize caps how much of a venue response is read. Time endpoints
// answer with a few hundred bytes.
const maxBodySize = 64 << 10

// APIError is a venue's non-2xx answer to a REST call.
type APIError struct {
	Venue      string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d %s", e.Venue, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable reports whether the venue may answer differently on a later
// attempt: server errors and rate limiting.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsCircuitOpen reports whether err was returned without a request because
// the venue's circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// fetch makes one GET against the venue and returns the response body.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", c.name, path, err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{Venue: c.name, Path: path, StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// retryDelay is the wait before the given retry, doubling from
// retryBackoff and jittered to between half and one and a half times that.
func (c *Client) retryDelay(retry int) time.Duration {
	base := c.retryBackoff << (retry - 1)
	return base/2 + time.Duration(rand.Int64N(int64(base)+1))
}

// fetchRetrying calls fetch until the venue answers, the error is final,
// or maxRetries retries have been spent. Transport errors and retryable
// statuses are retried.
func (c *Client) fetchRetrying(ctx context.Context, path string) ([]byte, error) {
	attempts := max(c.maxRetries, 0) + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.retryDelay(attempt - 1)
			c.logger.Debug("venue did not answer, retrying",
				"venue", c.name,
				"path", path,
				"attempt", attempt,
				"wait", wait,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.fetch(ctx, path)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%s %s: no answer after %d attempts: %w", c.name, path, attempts, lastErr)
}

// get fetches path through the venue's circuit breaker and decodes the JSON
// body into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchRetrying(ctx, path)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(out.([]byte), result); err != nil {
		return fmt.Errorf("%s %s: decode: %w", c.name, path, err)
	}
	return nil
}
