package lending

import (
	"errors"
	"time"
)

// Clock returns the current time; injectable for tests.
type Clock func() time.Time

var (
	ErrInvalidLoanDuration     = errors.New("loan duration must be at least one day")
	ErrInvalidMaxRenewals      = errors.New("max renewals must not be negative")
	ErrInvalidRenewalExtension = errors.New("renewal extension must be at least one day")
	ErrInvalidMaxLoans         = errors.New("max loans per person must be at least 1")
)

// Policy holds the lending rules of the library.
type Policy struct {
	// LoanDurationDays determines the due date of a new loan.
	LoanDurationDays int

	// MaxRenewals bounds Loan.RenewalCount.
	MaxRenewals int

	// RenewalExtensionDays is the due date extension applied by a renewal
	// when the request does not specify additional days.
	RenewalExtensionDays int

	// MaxLoansPerPerson bounds the number of stored-active loans one person may hold.
	MaxLoansPerPerson int

	// BlockWhenOverdue forbids opening new loans while the person has
	// derived-overdue loans.
	BlockWhenOverdue bool

	// RenewalsEnabled switches the renewal operation on or off.
	RenewalsEnabled bool
}

// DefaultPolicy returns the rules used when no configuration is supplied.
func DefaultPolicy() Policy {
	return Policy{
		LoanDurationDays:     14,
		MaxRenewals:          2,
		RenewalExtensionDays: 7,
		MaxLoansPerPerson:    5,
		BlockWhenOverdue:     true,
		RenewalsEnabled:      true,
	}
}

// Validate checks the policy for values that would make lending impossible.
func (p Policy) Validate() error {
	if p.LoanDurationDays < 1 {
		return ErrInvalidLoanDuration
	}

	if p.MaxRenewals < 0 {
		return ErrInvalidMaxRenewals
	}

	if p.RenewalExtensionDays < 1 {
		return ErrInvalidRenewalExtension
	}

	if p.MaxLoansPerPerson < 1 {
		return ErrInvalidMaxLoans
	}

	return nil
}
