package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/wildvoice/wildrag/internal/log"
)

const (
	// RetryAttempts is the total number of tries for rate limited calls.
	RetryAttempts = 2

	// RetryDelay is the wait between tries. Rate limit windows on the
	// OpenAI side reset per minute.
	RetryDelay = 60 * time.Second
)

// IsRateLimit reports whether err is a rate limit or quota error.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota")
}

// Retrier re-runs rate limited calls after a fixed delay.
type Retrier struct {
	Attempts int
	Delay    time.Duration
	Logger   log.Logger
}

// NewRetrier returns a retrier with the package defaults.
func NewRetrier(logger log.Logger) *Retrier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retrier{Attempts: RetryAttempts, Delay: RetryDelay, Logger: logger}
}

// Do runs fn, retrying on rate limit errors until the attempts are spent.
// Non rate limit errors return immediately.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRateLimit(err) {
			return err
		}
		if attempt == r.Attempts {
			break
		}
		r.Logger.Warn("rate limited, waiting before retry",
			"attempt", attempt,
			"attempts", r.Attempts,
			"delay", r.Delay,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Delay):
		}
	}
	return err
}
