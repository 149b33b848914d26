package loans

import (
	"errors"
)

// Validation errors - the caller supplied something correctable.
var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidLoanPeriod    = errors.New("loan period must be at least one day")
	ErrInvalidPersonID      = errors.New("person id must not be empty")
	ErrInvalidResourceID    = errors.New("resource id must not be empty")
	ErrObservationsRequired = errors.New("observations are required when marking a loan as lost")
)

// Eligibility errors - the person or the stock forbids opening a new loan right now.
var (
	ErrPersonInactive    = errors.New("person inactive")
	ErrMaxLoansReached   = errors.New("max loans reached")
	ErrHasOverdueLoans   = errors.New("has overdue loans")
	ErrInsufficientStock = errors.New("insufficient stock for the requested quantity")
)

// State errors - a transition was attempted on a loan not in the required stored state.
var (
	ErrLoanNotActive       = errors.New("loan is not active")
	ErrLoanAlreadyReturned = errors.New("loan has already been returned")
	ErrMaxRenewalsReached  = errors.New("maximum number of renewals reached")
	ErrRenewalsDisabled    = errors.New("renewals are disabled")
)

// Not-found errors.
var (
	ErrLoanNotFound     = errors.New("loan not found")
	ErrPersonNotFound   = errors.New("person not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// ErrStaleLoanState signals that a conditional update affected no rows because
// the loan was mutated concurrently. Callers reload the loan and re-evaluate;
// it is the only retryable error in this package.
var ErrStaleLoanState = errors.New("stale loan state, no rows were affected")

// Infrastructure errors.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyLoansTableName   = errors.New("empty loans table name supplied")
	ErrBuildingQueryFailed   = errors.New("failed to build database query")
	ErrQueryingLoansFailed   = errors.New("failed to query loans from the database")
	ErrScanningDBRowFailed   = errors.New("failed to scan database row")
	ErrStoringLoanFailed     = errors.New("failed to store loan in the database")
	ErrRowsAffectedFailed    = errors.New("failed to get rows affected count")
)
