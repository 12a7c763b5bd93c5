package llmclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
)

const (
	maxAttempts  = 3
	baseBackoff  = 500 * time.Millisecond
	maxBackoff   = 8 * time.Second
	proactiveQPS = 2.0
)

// RetryingClient wraps a ports.LLMClient with exponential backoff over
// transient transport errors and a proactive token-bucket throttle, so one
// slow/unreliable provider can't be hammered by concurrent jobs. Grounded on
// custodia-labs-sercha-cli's connectors/github/ratelimit.go token-bucket
// idiom; backoff schedule doubles per attempt up to maxBackoff.
type RetryingClient struct {
	inner   ports.LLMClient
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewRetryingClient wraps inner with retry and proactive-throttle behavior.
// log may be nil, in which case a no-op logger is used.
func NewRetryingClient(inner ports.LLMClient, log *zap.Logger) *RetryingClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryingClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(proactiveQPS), 1),
		log:     log,
	}
}

// Complete implements ports.LLMClient, retrying transient failures up to
// maxAttempts times with exponential backoff before surfacing a wrapped
// pipelineerr.LLMError.
func (c *RetryingClient) Complete(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", pipelineerr.LLMError(err)
		}

		result, err := c.inner.Complete(ctx, prompt, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", pipelineerr.LLMError(err)
		}

		if attempt < maxAttempts-1 {
			delay := backoffFor(attempt)
			c.log.Warn("llm call failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return "", pipelineerr.LLMError(ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return "", pipelineerr.LLMError(fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr))
}

// backoffFor returns the delay before the retry following attempt
// (0-indexed), doubling each time and capped at maxBackoff.
func backoffFor(attempt int) time.Duration {
	d := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
