package loans_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/loanengine/loans"
)

func Test_DerivedStatus_IsPureFunctionOfStatusDueDateAndNow(t *testing.T) {
	dueDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	returnedAt := dueDate.AddDate(0, 0, 1)

	tests := []struct {
		name     string
		status   loans.Status
		now      time.Time
		expected loans.Status
	}{
		{
			name:     "active_before_due_date_stays_active",
			status:   loans.StatusActive,
			now:      dueDate.AddDate(0, 0, -1),
			expected: loans.StatusActive,
		},
		{
			name:     "active_at_due_date_stays_active",
			status:   loans.StatusActive,
			now:      dueDate,
			expected: loans.StatusActive,
		},
		{
			name:     "active_past_due_date_reads_overdue",
			status:   loans.StatusActive,
			now:      dueDate.AddDate(0, 0, 5),
			expected: loans.StatusOverdue,
		},
		{
			name:     "returned_past_due_date_stays_returned",
			status:   loans.StatusReturned,
			now:      dueDate.AddDate(0, 0, 5),
			expected: loans.StatusReturned,
		},
		{
			name:     "lost_past_due_date_stays_lost",
			status:   loans.StatusLost,
			now:      dueDate.AddDate(0, 0, 5),
			expected: loans.StatusLost,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loan := loans.Loan{Status: tc.status, DueDate: dueDate}
			if tc.status == loans.StatusReturned {
				loan.ReturnedDate = &returnedAt
			}

			assert.Equal(t, tc.expected, loans.DerivedStatus(loan, tc.now))
		})
	}
}

func Test_DaysOverdue_CountsWholeDaysPastDueDate(t *testing.T) {
	loan, err := loans.BuildLoan(
		uuid.New(),
		uuid.New(),
		1,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		14,
		"",
	)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), loan.DueDate)

	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	assert.True(t, loans.IsOverdue(loan, now))
	assert.Equal(t, 5, loans.DaysOverdue(loan, now))
	assert.Equal(t, -5, loans.DaysUntilDue(loan, now))
}

func Test_DaysOverdue_IsZeroWhenNotOverdue(t *testing.T) {
	dueDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	now := dueDate.AddDate(0, 0, 3)

	activeNotDue := loans.Loan{Status: loans.StatusActive, DueDate: now.AddDate(0, 0, 2)}
	assert.Equal(t, 0, loans.DaysOverdue(activeNotDue, now))
	assert.Equal(t, 2, loans.DaysUntilDue(activeNotDue, now))

	returned := loans.Loan{Status: loans.StatusReturned, DueDate: dueDate}
	assert.Equal(t, 0, loans.DaysOverdue(returned, now))
}

func Test_IsOverdue_PartialDaysDoNotCountAsFullDays(t *testing.T) {
	dueDate := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	loan := loans.Loan{Status: loans.StatusActive, DueDate: dueDate}

	now := dueDate.Add(6 * time.Hour)

	assert.True(t, loans.IsOverdue(loan, now))
	assert.Equal(t, 0, loans.DaysOverdue(loan, now))
}
