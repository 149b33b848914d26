package lending

import (
	"context"

	"github.com/schoollib/loanengine/loans"
)

// Lifecycle events emitted through the loans.NotificationSink.
const (
	EventLoanCreated  = "loan.created"
	EventLoanRenewed  = "loan.renewed"
	EventLoanReturned = "loan.returned"
	EventLoanLost     = "loan.lost"
)

// PenaltyAssessor is the post-return extension point. Penalty rules are
// owned elsewhere, so the service only hands over the facts; whatever the
// assessor does is outside loan state. An assessor error is logged and does
// not undo the return.
type PenaltyAssessor interface {
	AssessReturn(ctx context.Context, loan loans.Loan, outcome ReturnOutcome) error
}

// NopPenaltyAssessor is the default assessor; it does nothing.
type NopPenaltyAssessor struct{}

// AssessReturn implements PenaltyAssessor.
func (NopPenaltyAssessor) AssessReturn(context.Context, loans.Loan, ReturnOutcome) error {
	return nil
}

var _ PenaltyAssessor = NopPenaltyAssessor{}
