package lending_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/loanengine/lending"
	"github.com/schoollib/loanengine/loans"
)

func activeLoan(t *testing.T, loanDate time.Time) loans.Loan {
	t.Helper()

	loan, err := loans.BuildLoan(uuid.New(), uuid.New(), 1, loanDate, 14, "")
	require.NoError(t, err)

	return loan
}

func Test_DecideRenewal_ExtendsDueDateAndCountsRenewal(t *testing.T) {
	policy := lending.DefaultPolicy()
	loanDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	loan := activeLoan(t, loanDate)

	renewed, err := lending.DecideRenewal(loan, now, 0, policy)
	require.NoError(t, err)

	assert.Equal(t, loan.DueDate.AddDate(0, 0, policy.RenewalExtensionDays), renewed.DueDate)
	assert.Equal(t, 1, renewed.RenewalCount)
	require.NotNil(t, renewed.LastRenewedAt)
	assert.Equal(t, now, *renewed.LastRenewedAt)
}

func Test_DecideRenewal_ExplicitAdditionalDaysWin(t *testing.T) {
	policy := lending.DefaultPolicy()
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	renewed, err := lending.DecideRenewal(loan, now, 3, policy)
	require.NoError(t, err)

	assert.Equal(t, loan.DueDate.AddDate(0, 0, 3), renewed.DueDate)
}

func Test_DecideRenewal_RejectsNegativeAdditionalDays(t *testing.T) {
	policy := lending.DefaultPolicy()
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := lending.DecideRenewal(loan, now, -30, policy)
	assert.ErrorIs(t, err, loans.ErrInvalidLoanPeriod)
}

func Test_DecideRenewal_OverdueLoanIsStillRenewable(t *testing.T) {
	policy := lending.DefaultPolicy()
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := loan.DueDate.AddDate(0, 0, 10)

	require.True(t, loans.IsOverdue(loan, now))

	_, err := lending.DecideRenewal(loan, now, 0, policy)
	assert.NoError(t, err)
}

func Test_DecideRenewal_FailsAtMaxRenewalsRegardlessOfTime(t *testing.T) {
	policy := lending.DefaultPolicy()
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	loan.RenewalCount = policy.MaxRenewals

	yearsLater := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := lending.DecideRenewal(loan, yearsLater, 0, policy)
	assert.ErrorIs(t, err, loans.ErrMaxRenewalsReached)
}

func Test_DecideRenewal_FailsWhenPolicyDisablesRenewals(t *testing.T) {
	policy := lending.DefaultPolicy()
	policy.RenewalsEnabled = false
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := lending.DecideRenewal(loan, time.Now(), 0, policy)
	assert.ErrorIs(t, err, loans.ErrRenewalsDisabled)
}

func Test_DecideRenewal_FailsOnTerminalLoans(t *testing.T) {
	policy := lending.DefaultPolicy()
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	returned := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	returned.Status = loans.StatusReturned
	_, err := lending.DecideRenewal(returned, now, 0, policy)
	assert.ErrorIs(t, err, loans.ErrLoanNotActive)

	lost := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	lost.Status = loans.StatusLost
	_, err = lending.DecideRenewal(lost, now, 0, policy)
	assert.ErrorIs(t, err, loans.ErrLoanNotActive)
}

func Test_DecideReturn_ClosesLoanAndReportsOverdueOutcome(t *testing.T) {
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := loan.DueDate.AddDate(0, 0, 5)

	returned, outcome, err := lending.DecideReturn(loan, now, "all fine", "slightly worn cover")
	require.NoError(t, err)

	assert.Equal(t, loans.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedDate)
	assert.Equal(t, now, *returned.ReturnedDate)
	assert.Equal(t, "all fine | slightly worn cover", returned.ReturnObservations)
	assert.True(t, outcome.WasOverdue)
	assert.Equal(t, 5, outcome.DaysOverdue)
}

func Test_DecideReturn_OnTimeReturnHasCleanOutcome(t *testing.T) {
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := loan.DueDate.AddDate(0, 0, -1)

	returned, outcome, err := lending.DecideReturn(loan, now, "", "")
	require.NoError(t, err)

	assert.Equal(t, loans.StatusReturned, returned.Status)
	assert.Empty(t, returned.ReturnObservations)
	assert.False(t, outcome.WasOverdue)
	assert.Zero(t, outcome.DaysOverdue)
}

func Test_DecideReturn_SecondReturnAlwaysFails(t *testing.T) {
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	returned, _, err := lending.DecideReturn(loan, now, "", "")
	require.NoError(t, err)

	_, _, err = lending.DecideReturn(returned, now.AddDate(0, 0, 1), "", "")
	assert.ErrorIs(t, err, loans.ErrLoanAlreadyReturned)
}

func Test_DecideReturn_LostLoanCannotBeReturned(t *testing.T) {
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	loan.Status = loans.StatusLost

	_, _, err := lending.DecideReturn(loan, time.Now(), "", "")
	assert.ErrorIs(t, err, loans.ErrLoanNotActive)
}

func Test_DecideLoss_RequiresObservations(t *testing.T) {
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := lending.DecideLoss(loan, now, "")
	assert.ErrorIs(t, err, loans.ErrObservationsRequired)

	_, err = lending.DecideLoss(loan, now, "   ")
	assert.ErrorIs(t, err, loans.ErrObservationsRequired)
}

func Test_DecideLoss_MarksLoanLostAndKeepsAuditTrail(t *testing.T) {
	loan := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	lost, err := lending.DecideLoss(loan, now, "left on bus")
	require.NoError(t, err)

	assert.Equal(t, loans.StatusLost, lost.Status)
	require.NotNil(t, lost.LostDate)
	assert.Equal(t, now, *lost.LostDate)
	assert.Contains(t, lost.Observations, "left on bus")
}

func Test_DecideLoss_FailsOnTerminalLoans(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	returned := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	returned.Status = loans.StatusReturned
	_, err := lending.DecideLoss(returned, now, "gone")
	assert.ErrorIs(t, err, loans.ErrLoanNotActive)

	lost := activeLoan(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	lost.Status = loans.StatusLost
	_, err = lending.DecideLoss(lost, now, "gone")
	assert.ErrorIs(t, err, loans.ErrLoanNotActive)
}
