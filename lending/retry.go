package lending

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/schoollib/loanengine/loans"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	metricOperationRetries  = "lending_operation_retries_total"
	metricRetryDelay        = "lending_retry_delay_seconds"
	metricMaxRetriesReached = "lending_max_retries_reached_total"

	labelOperation = "operation"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperationName is returned when an empty operation name is provided to WithRetryMetrics.
	ErrEmptyOperationName = errors.New("operation name must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector loans.MetricsCollector
	operation        string
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor to prevent thundering herd problems.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation.
// Requires an operation name to properly label metrics.
func WithRetryMetrics(collector loans.MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperationName
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}

// RetryWithExponentialBackoff implements optimistic concurrency retry logic.
// It executes the provided function with exponential backoff, retrying only
// on retryable errors up to maxAttempts times.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms (with 30% jitter).
//
// Only loans.ErrStaleLoanState is retried - a loan mutation lost the race
// against a concurrent mutation of the same loan and must re-read before
// deciding again. All other errors fail fast; in particular timeouts are not
// retried, because retrying during overload creates cascade failures.
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(ctx, config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				// continue with retry
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		recordRetryAttemptMetric(ctx, config, attempt)
	}

	recordMaxRetriesReachedMetric(ctx, config)

	return lastErr
}

func isRetryableError(err error) bool {
	return errors.Is(err, loans.ErrStaleLoanState)
}

func recordRetryDelayMetric(ctx context.Context, config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:   config.operation,
		"attempt_number": fmt.Sprintf("%d", attempt),
	}

	if contextual, ok := config.metricsCollector.(loans.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricRetryDelay, backoffDelay, labels)
		return
	}

	config.metricsCollector.RecordDuration(metricRetryDelay, backoffDelay, labels)
}

func recordRetryAttemptMetric(ctx context.Context, config *retryConfig, attempt int) {
	if config.metricsCollector == nil || attempt >= config.maxAttempts-1 {
		return
	}

	labels := map[string]string{
		labelOperation:   config.operation,
		"attempt_number": fmt.Sprintf("%d", attempt+1),
	}

	if contextual, ok := config.metricsCollector.(loans.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricOperationRetries, labels)
		return
	}

	config.metricsCollector.IncrementCounter(metricOperationRetries, labels)
}

func recordMaxRetriesReachedMetric(ctx context.Context, config *retryConfig) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: config.operation}

	if contextual, ok := config.metricsCollector.(loans.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricMaxRetriesReached, labels)
		return
	}

	config.metricsCollector.IncrementCounter(metricMaxRetriesReached, labels)
}
