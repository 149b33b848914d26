package lending

import (
	"time"

	"github.com/schoollib/loanengine/loans"
)

// LoanView is the read representation of a loan. Its Status is the derived
// status at the evaluation instant, so a stored-active loan past its due date
// reads as overdue without any record having been written.
type LoanView struct {
	loans.Loan

	IsOverdue    bool `json:"isOverdue"`
	DaysOverdue  int  `json:"daysOverdue"`
	DaysUntilDue int  `json:"daysUntilDue"`
}

// NewLoanView derives the read fields of a loan at the given instant.
func NewLoanView(loan loans.Loan, now time.Time) LoanView {
	view := LoanView{
		Loan:        loan,
		IsOverdue:   loans.IsOverdue(loan, now),
		DaysOverdue: loans.DaysOverdue(loan, now),
	}

	view.Status = loans.DerivedStatus(loan, now)

	if view.Status == loans.StatusActive || view.Status == loans.StatusOverdue {
		view.DaysUntilDue = loans.DaysUntilDue(loan, now)
	}

	return view
}
