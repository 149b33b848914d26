package loans

import (
	"math"
	"time"
)

const hoursPerDay = 24

// IsOverdue reports whether a loan is overdue at the given instant.
// Only active loans can be overdue; returned and lost loans never are.
func IsOverdue(loan Loan, now time.Time) bool {
	return loan.Status == StatusActive && now.After(loan.DueDate)
}

// DaysOverdue returns the number of whole days the loan is past its due date,
// or 0 when the loan is not overdue.
func DaysOverdue(loan Loan, now time.Time) int {
	if !IsOverdue(loan, now) {
		return 0
	}

	days := math.Floor(now.Sub(loan.DueDate).Hours() / hoursPerDay)

	return int(math.Max(0, days))
}

// DaysUntilDue returns the number of whole days until the loan falls due.
// The result is negative when the due date has already passed.
func DaysUntilDue(loan Loan, now time.Time) int {
	return int(math.Floor(loan.DueDate.Sub(now).Hours() / hoursPerDay))
}

// DerivedStatus computes the read-time status view of a loan.
// It is a pure function of (stored status, due date, now) and never mutates
// the record: an active loan past its due date reports StatusOverdue, every
// other loan reports its stored state.
func DerivedStatus(loan Loan, now time.Time) Status {
	if IsOverdue(loan, now) {
		return StatusOverdue
	}

	return loan.Status
}
