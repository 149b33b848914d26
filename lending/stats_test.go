package lending_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/loanengine/lending"
	"github.com/schoollib/loanengine/loans"
	"github.com/schoollib/loanengine/loans/memoryengine"
)

func Test_StatisticsAggregator_Summary(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()

	// Wednesday; the week bucket starts Monday 2024-03-18, the month
	// bucket starts 2024-03-01.
	now := time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC)

	popularResource := uuid.New()
	busyPerson := uuid.New()

	insert := func(personID uuid.UUID, resourceID uuid.UUID, loanDate time.Time) loans.Loan {
		loan, err := loans.BuildLoan(personID, resourceID, 1, loanDate, 14, "")
		require.NoError(t, err)
		require.NoError(t, store.Insert(ctx, loan, 100))

		return loan
	}

	// One loan from today, one from Monday, one from early March, one from February.
	insert(busyPerson, popularResource, time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC))
	insert(busyPerson, popularResource, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	insert(busyPerson, uuid.New(), time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))
	februaryLoan := insert(uuid.New(), uuid.New(), time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC))

	stored, err := store.Get(ctx, februaryLoan.ID)
	require.NoError(t, err)
	returnedAt := time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC)
	stored.Status = loans.StatusReturned
	stored.ReturnedDate = &returnedAt
	require.NoError(t, store.Update(ctx, stored))

	aggregator := lending.NewStatisticsAggregator(store, func() time.Time { return now })

	summary, err := aggregator.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Counts.Total)
	assert.Equal(t, int64(2), summary.Counts.Active)
	assert.Equal(t, int64(1), summary.Counts.Overdue)
	assert.Equal(t, int64(1), summary.Counts.Returned)

	assert.Equal(t, int64(1), summary.Today.NewLoans)
	assert.Equal(t, int64(0), summary.Today.Returns)

	assert.Equal(t, int64(2), summary.ThisWeek.NewLoans)
	assert.Equal(t, int64(1), summary.ThisWeek.Returns)

	assert.Equal(t, int64(3), summary.ThisMonth.NewLoans)
	assert.Equal(t, int64(1), summary.ThisMonth.Returns)

	require.NotEmpty(t, summary.TopResources)
	assert.Equal(t, popularResource, summary.TopResources[0].ID)
	assert.Equal(t, int64(2), summary.TopResources[0].Count)

	require.NotEmpty(t, summary.TopBorrowers)
	assert.Equal(t, busyPerson, summary.TopBorrowers[0].ID)
	assert.Equal(t, int64(3), summary.TopBorrowers[0].Count)
}

func Test_StatisticsAggregator_EmptyStore(t *testing.T) {
	store := memoryengine.NewLoanStore()
	aggregator := lending.NewStatisticsAggregator(store, time.Now)

	summary, err := aggregator.Summary(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Counts.Total)
	assert.Zero(t, summary.Today.NewLoans)
	assert.Empty(t, summary.TopResources)
	assert.Empty(t, summary.TopBorrowers)
}
