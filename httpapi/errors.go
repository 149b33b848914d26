package httpapi

import (
	"errors"
	"net/http"

	"github.com/schoollib/loanengine/loans"
)

// statusCodeFor maps the error taxonomy to HTTP status codes:
// validation 400, eligibility and state conflicts 409, unknown ids 404,
// everything else 500. Stale-state errors surface as 409 only after
// retries are exhausted.
func statusCodeFor(err error) int {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest
	case isConflictError(err):
		return http.StatusConflict
	case isNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, loans.ErrInvalidQuantity) ||
		errors.Is(err, loans.ErrInvalidLoanPeriod) ||
		errors.Is(err, loans.ErrInvalidPersonID) ||
		errors.Is(err, loans.ErrInvalidResourceID) ||
		errors.Is(err, loans.ErrObservationsRequired)
}

func isConflictError(err error) bool {
	return errors.Is(err, loans.ErrPersonInactive) ||
		errors.Is(err, loans.ErrMaxLoansReached) ||
		errors.Is(err, loans.ErrHasOverdueLoans) ||
		errors.Is(err, loans.ErrInsufficientStock) ||
		errors.Is(err, loans.ErrLoanNotActive) ||
		errors.Is(err, loans.ErrLoanAlreadyReturned) ||
		errors.Is(err, loans.ErrMaxRenewalsReached) ||
		errors.Is(err, loans.ErrRenewalsDisabled) ||
		errors.Is(err, loans.ErrStaleLoanState)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, loans.ErrLoanNotFound) ||
		errors.Is(err, loans.ErrPersonNotFound) ||
		errors.Is(err, loans.ErrResourceNotFound)
}

// messageFor keeps infrastructure details out of client responses.
func messageFor(err error, statusCode int) string {
	if statusCode == http.StatusInternalServerError {
		return "internal error"
	}

	return err.Error()
}
