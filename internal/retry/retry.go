// Package retry re-runs provider calls that failed for transient reasons.
package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
)

const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 8 * time.Second
)

// Policy controls how many times and how fast an operation is retried
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Default is the policy used by every provider adapter
var Default = Policy{
	MaxRetries:      DefaultMaxRetries,
	InitialInterval: DefaultInitialInterval,
	MaxInterval:     DefaultMaxInterval,
}

// StatusCoder is implemented by HTTP errors that carry a response status.
type StatusCoder interface {
	StatusCode() int
}

// Do runs op under the Default policy
func Do(ctx context.Context, op func() error) error {
	return Default.Do(ctx, op)
}

// Do runs op, retrying transient failures with exponential backoff. The
// last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}

// Transient reports whether err is worth retrying: rate limiting, server
// errors and network timeouts.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var statusErr StatusCoder
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
