package loans

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle value of a loan.
//
// StatusActive, StatusReturned and StatusLost are stored states.
// StatusOverdue is a derived, read-time-only view of an active loan whose
// due date has passed - it is never persisted.
type Status string

const (
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
	StatusLost     Status = "lost"
	StatusOverdue  Status = "overdue"
)

// IsStored reports whether s is a persistable lifecycle value.
func (s Status) IsStored() bool {
	return s == StatusActive || s == StatusReturned || s == StatusLost
}

// IsTerminal reports whether a loan in this stored state permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusReturned || s == StatusLost
}

// Loan is a record of a person borrowing some quantity of a resource for a bounded period.
//
// Status always holds the stored state; use DerivedStatus to obtain the
// read-time view that includes StatusOverdue.
type Loan struct {
	ID                 uuid.UUID  `json:"id"`
	PersonID           uuid.UUID  `json:"personId"`
	ResourceID         uuid.UUID  `json:"resourceId"`
	Quantity           int        `json:"quantity"`
	LoanDate           time.Time  `json:"loanDate"`
	DueDate            time.Time  `json:"dueDate"`
	ReturnedDate       *time.Time `json:"returnedDate,omitempty"`
	LostDate           *time.Time `json:"lostDate,omitempty"`
	LastRenewedAt      *time.Time `json:"lastRenewedAt,omitempty"`
	Status             Status     `json:"status"`
	Observations       string     `json:"observations,omitempty"`
	ReturnObservations string     `json:"returnObservations,omitempty"`
	RenewalCount       int        `json:"renewalCount"`

	// Version implements optimistic locking on mutation paths.
	// It is incremented by the store on every successful conditional update.
	Version int `json:"-"`
}

// BuildLoan creates a new Loan in the active stored state.
// The due date is derived from loanDate plus the given duration in days.
func BuildLoan(
	personID uuid.UUID,
	resourceID uuid.UUID,
	quantity int,
	loanDate time.Time,
	durationDays int,
	observations string,
) (Loan, error) {

	if quantity < 1 {
		return Loan{}, ErrInvalidQuantity
	}

	if durationDays < 1 {
		return Loan{}, ErrInvalidLoanPeriod
	}

	if personID == uuid.Nil {
		return Loan{}, ErrInvalidPersonID
	}

	if resourceID == uuid.Nil {
		return Loan{}, ErrInvalidResourceID
	}

	return Loan{
		ID:           uuid.New(),
		PersonID:     personID,
		ResourceID:   resourceID,
		Quantity:     quantity,
		LoanDate:     loanDate,
		DueDate:      loanDate.AddDate(0, 0, durationDays),
		Status:       StatusActive,
		Observations: strings.TrimSpace(observations),
	}, nil
}
