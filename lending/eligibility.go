package lending

import (
	"context"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/loans"
)

const (
	reasonPersonInactive  = "person inactive"
	reasonMaxLoansReached = "max loans reached"
	reasonHasOverdueLoans = "has overdue loans"
)

// CanBorrowResult is the outcome of an eligibility evaluation.
type CanBorrowResult struct {
	CanBorrow    bool   `json:"canBorrow"`
	Reason       string `json:"reason,omitempty"`
	ActiveLoans  int    `json:"activeLoans"`
	MaxLoans     int    `json:"maxLoans"`
	OverdueLoans int    `json:"overdueLoans"`
}

// Err maps a negative result onto the matching sentinel error, or nil when
// borrowing is allowed. The create path uses it to fail with a stable error kind.
func (r CanBorrowResult) Err() error {
	if r.CanBorrow {
		return nil
	}

	switch r.Reason {
	case reasonPersonInactive:
		return loans.ErrPersonInactive
	case reasonMaxLoansReached:
		return loans.ErrMaxLoansReached
	default:
		return loans.ErrHasOverdueLoans
	}
}

// EligibilityEvaluator decides whether a person may open a new loan.
//
// The evaluation is advisory on the read path (the can-borrow endpoint) and
// authoritative on the write path: CreateLoan runs it again immediately
// before reserving, because eligibility can change between the advisory
// check and the actual write.
type EligibilityEvaluator struct {
	store  LoanStore
	people loans.PersonDirectory
	policy Policy
	clock  Clock
}

// NewEligibilityEvaluator creates an evaluator over the given store and people directory.
func NewEligibilityEvaluator(store LoanStore, people loans.PersonDirectory, policy Policy, clock Clock) *EligibilityEvaluator {
	return &EligibilityEvaluator{
		store:  store,
		people: people,
		policy: policy,
		clock:  clock,
	}
}

// CanBorrow evaluates the lending rules for one person:
// an inactive person may not borrow, a person at the active-loan limit may
// not borrow, and - when the policy blocks it - neither may a person with
// derived-overdue loans.
func (e *EligibilityEvaluator) CanBorrow(ctx context.Context, personID uuid.UUID) (CanBorrowResult, error) {
	person, err := e.people.PersonByID(ctx, personID)
	if err != nil {
		return CanBorrowResult{}, err
	}

	result := CanBorrowResult{
		MaxLoans: e.policy.MaxLoansPerPerson,
	}

	if !person.Active {
		result.Reason = reasonPersonInactive
		return result, nil
	}

	activeLoans, err := e.store.CountActiveByPerson(ctx, personID)
	if err != nil {
		return CanBorrowResult{}, err
	}

	result.ActiveLoans = activeLoans

	if activeLoans >= e.policy.MaxLoansPerPerson {
		result.Reason = reasonMaxLoansReached
		return result, nil
	}

	overdueLoans, err := e.store.CountOverdueByPerson(ctx, personID, e.clock())
	if err != nil {
		return CanBorrowResult{}, err
	}

	result.OverdueLoans = overdueLoans

	if overdueLoans > 0 && e.policy.BlockWhenOverdue {
		result.Reason = reasonHasOverdueLoans
		return result, nil
	}

	result.CanBorrow = true

	return result, nil
}
