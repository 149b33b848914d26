package memoryengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/loanengine/loans"
	"github.com/schoollib/loanengine/loans/memoryengine"
)

func activeLoanFixture(t *testing.T, personID uuid.UUID, resourceID uuid.UUID, quantity int, loanDate time.Time) loans.Loan {
	t.Helper()

	loan, err := loans.BuildLoan(personID, resourceID, quantity, loanDate, 14, "")
	require.NoError(t, err)

	return loan
}

func Test_Insert_RejectsWhenStockIsExhausted(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	resourceID := uuid.New()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for range 3 {
		loan := activeLoanFixture(t, uuid.New(), resourceID, 1, loanDate)
		require.NoError(t, store.Insert(ctx, loan, 3))
	}

	reserved, err := store.ReservedQuantity(ctx, resourceID)
	require.NoError(t, err)
	assert.Equal(t, 3, reserved)

	fourth := activeLoanFixture(t, uuid.New(), resourceID, 1, loanDate)
	err = store.Insert(ctx, fourth, 3)
	assert.ErrorIs(t, err, loans.ErrInsufficientStock)

	_, err = store.Get(ctx, fourth.ID)
	assert.ErrorIs(t, err, loans.ErrLoanNotFound)
}

func Test_Insert_CountsQuantityNotLoanCount(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	resourceID := uuid.New()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := activeLoanFixture(t, uuid.New(), resourceID, 4, loanDate)
	require.NoError(t, store.Insert(ctx, first, 5))

	second := activeLoanFixture(t, uuid.New(), resourceID, 2, loanDate)
	assert.ErrorIs(t, store.Insert(ctx, second, 5), loans.ErrInsufficientStock)

	third := activeLoanFixture(t, uuid.New(), resourceID, 1, loanDate)
	assert.NoError(t, store.Insert(ctx, third, 5))
}

func Test_Insert_ConcurrentCreatesForLastUnit_ExactlyOneWins(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	resourceID := uuid.New()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	const attempts = 16

	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := range attempts {
		wg.Add(1)

		go func(slot int) {
			defer wg.Done()

			loan := activeLoanFixture(t, uuid.New(), resourceID, 1, loanDate)
			results[slot] = store.Insert(ctx, loan, 1)
		}(i)
	}

	wg.Wait()

	succeeded := 0

	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, loans.ErrInsufficientStock)
		}
	}

	assert.Equal(t, 1, succeeded)

	reserved, err := store.ReservedQuantity(ctx, resourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, reserved)
}

func Test_Update_GuardsAgainstStaleVersions(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()

	loan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, loan, 1))

	firstWriter, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)

	secondWriter, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)

	firstWriter.RenewalCount = 1
	require.NoError(t, store.Update(ctx, firstWriter))

	secondWriter.RenewalCount = 1
	assert.ErrorIs(t, store.Update(ctx, secondWriter), loans.ErrStaleLoanState)

	stored, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RenewalCount)
	assert.Equal(t, 1, stored.Version)
}

func Test_Update_UnknownLoanFails(t *testing.T) {
	store := memoryengine.NewLoanStore()

	err := store.Update(context.Background(), loans.Loan{ID: uuid.New()})
	assert.ErrorIs(t, err, loans.ErrLoanNotFound)
}

func Test_ReservedQuantity_LostLoansStayReserved(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	resourceID := uuid.New()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	loan := activeLoanFixture(t, uuid.New(), resourceID, 1, loanDate)
	require.NoError(t, store.Insert(ctx, loan, 2))

	stored, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)

	lostAt := loanDate.AddDate(0, 0, 3)
	stored.Status = loans.StatusLost
	stored.LostDate = &lostAt
	require.NoError(t, store.Update(ctx, stored))

	reserved, err := store.ReservedQuantity(ctx, resourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, reserved)
}

func Test_ReservedQuantity_ReturnedLoansFreeTheirUnits(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	resourceID := uuid.New()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	loan := activeLoanFixture(t, uuid.New(), resourceID, 2, loanDate)
	require.NoError(t, store.Insert(ctx, loan, 2))

	stored, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)

	returnedAt := loanDate.AddDate(0, 0, 7)
	stored.Status = loans.StatusReturned
	stored.ReturnedDate = &returnedAt
	require.NoError(t, store.Update(ctx, stored))

	reserved, err := store.ReservedQuantity(ctx, resourceID)
	require.NoError(t, err)
	assert.Equal(t, 0, reserved)
}

func Test_List_FiltersSortsAndPaginates(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	personID := uuid.New()
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	for day := 1; day <= 5; day++ {
		loanDate := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
		loan := activeLoanFixture(t, personID, uuid.New(), 1, loanDate)
		require.NoError(t, store.Insert(ctx, loan, 1))
	}

	otherPersons := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, otherPersons, 1))

	filter := loans.BuildLoanFilter().WithPersonID(personID).Finalize()

	firstPage, total, err := store.List(ctx, filter, loans.Page{Number: 1, Limit: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, firstPage, 2)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), firstPage[0].LoanDate)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), firstPage[1].LoanDate)

	lastPage, total, err := store.List(ctx, filter, loans.Page{Number: 3, Limit: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, lastPage, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), lastPage[0].LoanDate)

	beyond, total, err := store.List(ctx, filter, loans.Page{Number: 9, Limit: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, beyond)
}

func Test_List_OverdueOnlyUsesDerivedState(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	overdueLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, loanDate)
	require.NoError(t, store.Insert(ctx, overdueLoan, 1))

	currentLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, currentLoan, 1))

	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	result, total, err := store.List(ctx, loans.BuildLoanFilter().OverdueOnly().Finalize(), loans.Page{}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, result, 1)
	assert.Equal(t, overdueLoan.ID, result[0].ID)
}

func Test_StatusCounts_BucketsSumToTotal(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	overdueLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, overdueLoan, 1))

	currentLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, currentLoan, 1))

	returnedLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, returnedLoan, 1))
	stored, err := store.Get(ctx, returnedLoan.ID)
	require.NoError(t, err)
	returnedAt := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	stored.Status = loans.StatusReturned
	stored.ReturnedDate = &returnedAt
	require.NoError(t, store.Update(ctx, stored))

	counts, err := store.StatusCounts(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(1), counts.Active)
	assert.Equal(t, int64(1), counts.Overdue)
	assert.Equal(t, int64(1), counts.Returned)
	assert.Equal(t, int64(0), counts.Lost)
	assert.Equal(t, counts.Total, counts.Active+counts.Overdue+counts.Returned+counts.Lost)
}

func Test_CountActiveAndOverdueByPerson(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	personID := uuid.New()
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	overdueLoan := activeLoanFixture(t, personID, uuid.New(), 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, overdueLoan, 1))

	currentLoan := activeLoanFixture(t, personID, uuid.New(), 1, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, currentLoan, 1))

	active, err := store.CountActiveByPerson(ctx, personID)
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	overdue, err := store.CountOverdueByPerson(ctx, personID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, overdue)

	otherActive, err := store.CountActiveByPerson(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, otherActive)
}

func Test_ActivitySince_CountsLoansReturnsAndRenewals(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	oldLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, oldLoan, 1))

	recentLoan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, recentLoan, 1))

	stored, err := store.Get(ctx, oldLoan.ID)
	require.NoError(t, err)
	renewedAt := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	stored.RenewalCount = 1
	stored.LastRenewedAt = &renewedAt
	require.NoError(t, store.Update(ctx, stored))

	activity, err := store.ActivitySince(ctx, from)
	require.NoError(t, err)

	assert.Equal(t, int64(1), activity.NewLoans)
	assert.Equal(t, int64(0), activity.Returns)
	assert.Equal(t, int64(1), activity.Renewals)
}

func Test_TopResourcesAndTopBorrowers_RankByLoanCount(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	popularResource := uuid.New()
	busyPerson := uuid.New()
	loanDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for range 3 {
		loan := activeLoanFixture(t, busyPerson, popularResource, 1, loanDate)
		require.NoError(t, store.Insert(ctx, loan, 10))
	}

	other := activeLoanFixture(t, uuid.New(), uuid.New(), 1, loanDate)
	require.NoError(t, store.Insert(ctx, other, 1))

	topResources, err := store.TopResources(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, topResources)
	assert.Equal(t, popularResource, topResources[0].ID)
	assert.Equal(t, int64(3), topResources[0].Count)

	topBorrowers, err := store.TopBorrowers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, topBorrowers, 1)
	assert.Equal(t, busyPerson, topBorrowers[0].ID)
	assert.Equal(t, int64(3), topBorrowers[0].Count)
}

func Test_Get_ReturnsDeepCopies(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()

	loan := activeLoanFixture(t, uuid.New(), uuid.New(), 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, loan, 1))

	stored, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)

	returnedAt := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	stored.Status = loans.StatusReturned
	stored.ReturnedDate = &returnedAt

	fresh, err := store.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusActive, fresh.Status)
	assert.Nil(t, fresh.ReturnedDate)
}

func Test_Insert_ErrorsAreStableKinds(t *testing.T) {
	store := memoryengine.NewLoanStore()
	ctx := context.Background()
	resourceID := uuid.New()

	loan := activeLoanFixture(t, uuid.New(), resourceID, 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, loan, 1))

	second := activeLoanFixture(t, uuid.New(), resourceID, 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	err := store.Insert(ctx, second, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, loans.ErrInsufficientStock))
}
