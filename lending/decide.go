package lending

import (
	"strings"
	"time"

	"github.com/schoollib/loanengine/loans"
)

// ReturnOutcome reports whether a returned loan was overdue at return time.
// It is informational only; penalty computation is delegated to the
// PenaltyAssessor hook.
type ReturnOutcome struct {
	WasOverdue  bool `json:"wasOverdue"`
	DaysOverdue int  `json:"daysOverdue"`
}

// DecideRenewal implements the business logic for renewing a loan.
// It is a pure function with no side effects: it takes the current loan and
// returns the mutated copy, or an error when a precondition fails.
//
// Business rules:
//
//	GIVEN: a loan in stored state active (a derived-overdue loan is still active and may be renewed)
//	WHEN: a renewal with optional additionalDays is requested
//	THEN: dueDate += additionalDays (default policy.RenewalExtensionDays), renewalCount += 1
//	ERROR: "loan period must be at least one day" if additionalDays is negative
//	ERROR: "loan is not active" if the loan is returned or lost
//	ERROR: "renewals are disabled" if the policy switches renewals off
//	ERROR: "maximum number of renewals reached" once renewalCount = policy.MaxRenewals
func DecideRenewal(loan loans.Loan, now time.Time, additionalDays int, policy Policy) (loans.Loan, error) {
	if additionalDays < 0 {
		return loans.Loan{}, loans.ErrInvalidLoanPeriod
	}

	if loan.Status != loans.StatusActive {
		return loans.Loan{}, loans.ErrLoanNotActive
	}

	if !policy.RenewalsEnabled {
		return loans.Loan{}, loans.ErrRenewalsDisabled
	}

	if loan.RenewalCount >= policy.MaxRenewals {
		return loans.Loan{}, loans.ErrMaxRenewalsReached
	}

	days := additionalDays
	if days == 0 {
		days = policy.RenewalExtensionDays
	}

	loan.DueDate = loan.DueDate.AddDate(0, 0, days)
	loan.RenewalCount++
	loan.LastRenewedAt = &now

	return loan, nil
}

// DecideReturn implements the business logic for returning a loan.
// The overdue outcome is computed against the due date before any mutation.
//
// Business rules:
//
//	GIVEN: a loan in stored state active
//	WHEN: a return with optional observations and resource condition is requested
//	THEN: status = returned, returnedDate = now; wasOverdue/daysOverdue are reported
//	ERROR: "loan has already been returned" if the loan is returned
//	ERROR: "loan is not active" if the loan is lost
func DecideReturn(loan loans.Loan, now time.Time, returnObservations string, resourceCondition string) (loans.Loan, ReturnOutcome, error) {
	if loan.Status == loans.StatusReturned {
		return loans.Loan{}, ReturnOutcome{}, loans.ErrLoanAlreadyReturned
	}

	if loan.Status != loans.StatusActive {
		return loans.Loan{}, ReturnOutcome{}, loans.ErrLoanNotActive
	}

	outcome := ReturnOutcome{
		WasOverdue:  loans.IsOverdue(loan, now),
		DaysOverdue: loans.DaysOverdue(loan, now),
	}

	loan.Status = loans.StatusReturned
	loan.ReturnedDate = &now
	loan.ReturnObservations = joinObservations(returnObservations, resourceCondition)

	return loan, outcome, nil
}

// DecideLoss implements the business logic for marking a loan as lost.
// Observations are mandatory: they are the audit trail for the missing units.
//
// Business rules:
//
//	GIVEN: a loan in stored state active
//	WHEN: a loss with non-empty observations is reported
//	THEN: status = lost, lostDate = now; the units stay reserved permanently
//	ERROR: "observations are required when marking a loan as lost" on empty observations
//	ERROR: "loan is not active" if the loan is returned or lost
func DecideLoss(loan loans.Loan, now time.Time, observations string) (loans.Loan, error) {
	if strings.TrimSpace(observations) == "" {
		return loans.Loan{}, loans.ErrObservationsRequired
	}

	if loan.Status != loans.StatusActive {
		return loans.Loan{}, loans.ErrLoanNotActive
	}

	loan.Status = loans.StatusLost
	loan.LostDate = &now
	loan.Observations = joinObservations(loan.Observations, strings.TrimSpace(observations))

	return loan, nil
}

func joinObservations(parts ...string) string {
	cleaned := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}

	return strings.Join(cleaned, " | ")
}
