package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy controls how often a failed completion is re-sent. Only
// transient failures (rate limits, 5xx, transport errors) are retried.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Do runs op under the policy. With Attempts <= 1 it calls op exactly once.
func (p RetryPolicy) Do(ctx context.Context, op func() (CompletionResponse, error)) (CompletionResponse, error) {
	if p.Attempts <= 1 {
		return op()
	}

	operation := func() (CompletionResponse, error) {
		resp, err := op()
		if err == nil {
			return resp, nil
		}
		if !retryable(ctx, err) {
			return CompletionResponse{}, backoff.Permanent(err)
		}
		return CompletionResponse{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(p.Attempts)))
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
