package llm

import (
	"context"

	apperrors "symcheck/internal/errors"
	"symcheck/internal/logging"
)

// retryClient wraps a Client with retry logic and a circuit breaker.
type retryClient struct {
	underlying     Client
	retryConfig    apperrors.RetryConfig
	circuitBreaker *apperrors.CircuitBreaker
	logger         logging.Logger
}

// NewRetryClient wraps client so transient failures are retried and a
// persistently failing upstream is short-circuited.
func NewRetryClient(client Client, retryConfig apperrors.RetryConfig, breaker *apperrors.CircuitBreaker, logger logging.Logger) Client {
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: breaker,
		logger:         logging.OrNop(logger),
	}
}

func (c *retryClient) Complete(ctx context.Context, req Request) (string, error) {
	return apperrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (string, error) {
		if c.circuitBreaker != nil {
			if err := c.circuitBreaker.Allow(); err != nil {
				return "", err
			}
		}
		out, err := c.underlying.Complete(ctx, req)
		if c.circuitBreaker != nil {
			c.circuitBreaker.Mark(err)
		}
		return out, err
	}, c.logger)
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
