package lending_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/loanengine/lending"
	"github.com/schoollib/loanengine/loans"
	"github.com/schoollib/loanengine/testutil/testdoubles"
)

func Test_Retry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0

	err := lending.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func Test_Retry_RetriesStaleLoanStateUntilSuccess(t *testing.T) {
	calls := 0

	err := lending.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return loans.ErrStaleLoanState
		}

		return nil
	}, lending.WithBaseDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func Test_Retry_DoesNotRetryOtherErrors(t *testing.T) {
	calls := 0

	err := lending.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return loans.ErrLoanAlreadyReturned
	}, lending.WithBaseDelay(time.Millisecond))

	assert.ErrorIs(t, err, loans.ErrLoanAlreadyReturned)
	assert.Equal(t, 1, calls)
}

func Test_Retry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0

	err := lending.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return loans.ErrStaleLoanState
	}, lending.WithMaxAttempts(3), lending.WithBaseDelay(time.Millisecond))

	assert.ErrorIs(t, err, loans.ErrStaleLoanState)
	assert.Equal(t, 3, calls)
}

func Test_Retry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0

	err := lending.RetryWithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		cancel()

		return loans.ErrStaleLoanState
	}, lending.WithBaseDelay(time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func Test_Retry_InvalidOptionsFailFast(t *testing.T) {
	noop := func(context.Context) error { return nil }

	err := lending.RetryWithExponentialBackoff(context.Background(), noop, lending.WithMaxAttempts(0))
	assert.ErrorIs(t, err, lending.ErrInvalidMaxAttempts)

	err = lending.RetryWithExponentialBackoff(context.Background(), noop, lending.WithBaseDelay(-time.Second))
	assert.ErrorIs(t, err, lending.ErrNegativeBaseDelay)

	err = lending.RetryWithExponentialBackoff(context.Background(), noop, lending.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, lending.ErrInvalidJitterFactor)

	err = lending.RetryWithExponentialBackoff(context.Background(), noop, lending.WithRetryMetrics(nil, "op"))
	assert.ErrorIs(t, err, lending.ErrNilMetricsCollector)

	err = lending.RetryWithExponentialBackoff(context.Background(), noop, lending.WithRetryMetrics(testdoubles.NewMetricsCollectorSpy(), ""))
	assert.ErrorIs(t, err, lending.ErrEmptyOperationName)
}

func Test_Retry_RecordsMetrics(t *testing.T) {
	metrics := testdoubles.NewMetricsCollectorSpy()
	calls := 0

	err := lending.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return loans.ErrStaleLoanState
		}

		return nil
	},
		lending.WithBaseDelay(time.Millisecond),
		lending.WithRetryMetrics(metrics, "update_loan"),
	)

	require.NoError(t, err)
	assert.Equal(t, 1, metrics.CountCounterRecords("lending_operation_retries_total"))
	assert.True(t, metrics.HasDurationRecord("lending_retry_delay_seconds"))
}

func Test_Retry_RecordsMaxRetriesReached(t *testing.T) {
	metrics := testdoubles.NewMetricsCollectorSpy()

	err := lending.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		return loans.ErrStaleLoanState
	},
		lending.WithMaxAttempts(2),
		lending.WithBaseDelay(time.Millisecond),
		lending.WithRetryMetrics(metrics, "update_loan"),
	)

	require.Error(t, err)
	assert.True(t, errors.Is(err, loans.ErrStaleLoanState))
	assert.Equal(t, 1, metrics.CountCounterRecords("lending_max_retries_reached_total"))
}
