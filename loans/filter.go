package loans

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Filter describes which loans a storage engine should select.
// It is a generic description consumed by engine-specific query builders
// (Postgres, in-memory, ...), designed to only allow the combinations the
// read paths actually need: by person, by resource, by stored status,
// by loan/due date range, and the derived overdue-only view.
type Filter struct {
	personID    uuid.UUID
	resourceID  uuid.UUID
	statuses    []Status
	overdueOnly bool
	loanedFrom  time.Time
	loanedUntil time.Time
	dueFrom     time.Time
	dueUntil    time.Time
}

// FilterBuilder builds a Filter with a fluent interface.
type FilterBuilder struct {
	filter Filter
}

// BuildLoanFilter starts a new FilterBuilder.
func BuildLoanFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// MatchingAnyLoan directly creates an empty Filter.
func MatchingAnyLoan() Filter {
	return Filter{}
}

// WithPersonID restricts the selection to loans of one person.
func (b *FilterBuilder) WithPersonID(id uuid.UUID) *FilterBuilder {
	b.filter.personID = id
	return b
}

// WithResourceID restricts the selection to loans of one resource.
func (b *FilterBuilder) WithResourceID(id uuid.UUID) *FilterBuilder {
	b.filter.resourceID = id
	return b
}

// WithAnyStatusOf restricts the selection to loans in any of the given stored states.
// It sanitizes the input: empty and derived-only statuses are dropped,
// duplicates are removed, and the result is sorted.
func (b *FilterBuilder) WithAnyStatusOf(statuses ...Status) *FilterBuilder {
	cleaned := make([]Status, 0, len(statuses))

	for _, status := range statuses {
		if status.IsStored() {
			cleaned = append(cleaned, status)
		}
	}

	slices.Sort(cleaned)
	b.filter.statuses = slices.Compact(cleaned)

	return b
}

// OverdueOnly restricts the selection to loans whose derived status is overdue,
// meaning stored-active loans with a due date before the evaluation instant.
func (b *FilterBuilder) OverdueOnly() *FilterBuilder {
	b.filter.overdueOnly = true
	return b
}

// LoanedBetween restricts the selection by loan date. A zero time on either
// side leaves that side of the range open.
func (b *FilterBuilder) LoanedBetween(from time.Time, until time.Time) *FilterBuilder {
	b.filter.loanedFrom = from
	b.filter.loanedUntil = until

	return b
}

// DueBetween restricts the selection by due date. A zero time on either
// side leaves that side of the range open.
func (b *FilterBuilder) DueBetween(from time.Time, until time.Time) *FilterBuilder {
	b.filter.dueFrom = from
	b.filter.dueUntil = until

	return b
}

// Finalize returns the built Filter.
func (b *FilterBuilder) Finalize() Filter {
	return b.filter
}

// PersonID returns the person restriction; the bool is false when unrestricted.
func (f Filter) PersonID() (uuid.UUID, bool) {
	return f.personID, f.personID != uuid.Nil
}

// ResourceID returns the resource restriction; the bool is false when unrestricted.
func (f Filter) ResourceID() (uuid.UUID, bool) {
	return f.resourceID, f.resourceID != uuid.Nil
}

// Statuses returns the stored-status restriction; empty means unrestricted.
func (f Filter) Statuses() []Status {
	return f.statuses
}

// OverdueOnly reports whether only derived-overdue loans should be selected.
func (f Filter) OverdueOnly() bool {
	return f.overdueOnly
}

// LoanedFrom returns the lower bound on the loan date; zero means open.
func (f Filter) LoanedFrom() time.Time {
	return f.loanedFrom
}

// LoanedUntil returns the upper bound on the loan date; zero means open.
func (f Filter) LoanedUntil() time.Time {
	return f.loanedUntil
}

// DueFrom returns the lower bound on the due date; zero means open.
func (f Filter) DueFrom() time.Time {
	return f.dueFrom
}

// DueUntil returns the upper bound on the due date; zero means open.
func (f Filter) DueUntil() time.Time {
	return f.dueUntil
}

// Matches evaluates the filter against a single loan at the given instant.
// Storage engines that hold loans in memory use it directly; SQL engines
// translate the same semantics into WHERE clauses.
func (f Filter) Matches(loan Loan, now time.Time) bool {
	if f.personID != uuid.Nil && loan.PersonID != f.personID {
		return false
	}

	if f.resourceID != uuid.Nil && loan.ResourceID != f.resourceID {
		return false
	}

	if len(f.statuses) > 0 && !slices.Contains(f.statuses, loan.Status) {
		return false
	}

	if f.overdueOnly && !IsOverdue(loan, now) {
		return false
	}

	if !f.loanedFrom.IsZero() && loan.LoanDate.Before(f.loanedFrom) {
		return false
	}

	if !f.loanedUntil.IsZero() && loan.LoanDate.After(f.loanedUntil) {
		return false
	}

	if !f.dueFrom.IsZero() && loan.DueDate.Before(f.dueFrom) {
		return false
	}

	if !f.dueUntil.IsZero() && loan.DueDate.After(f.dueUntil) {
		return false
	}

	return true
}
