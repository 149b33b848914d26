// Package memoryengine provides a mutex-guarded in-memory loan store with the
// same semantics as the Postgres engine: the reserve is an atomic
// check-and-insert, and every transition is a conditional update guarded by
// the loan version. It backs unit tests and dependency-free demo setups.
package memoryengine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/loans"
)

// LoanStore holds all loans in process memory.
// All operations are safe for concurrent use; a single mutex serializes
// mutations, which makes the availability check and the insert one atomic step.
type LoanStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]loans.Loan
	logger loans.Logger
}

// Option defines a functional option for configuring the LoanStore.
type Option func(*LoanStore)

// WithLogger sets the logger for the LoanStore.
func WithLogger(logger loans.Logger) Option {
	return func(s *LoanStore) {
		s.logger = logger
	}
}

// NewLoanStore creates an empty in-memory LoanStore.
func NewLoanStore(options ...Option) *LoanStore {
	store := &LoanStore{
		byID: make(map[uuid.UUID]loans.Loan),
	}

	for _, option := range options {
		option(store)
	}

	return store
}

// Insert stores a new active loan if, at this instant, the already reserved
// quantity of the resource plus the new loan's quantity does not exceed
// totalVolumes. Lost loans stay reserved, so they count against the total.
// Fails with loans.ErrInsufficientStock when the check does not pass.
func (s *LoanStore) Insert(_ context.Context, loan loans.Loan, totalVolumes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reserved := s.reservedQuantityLocked(loan.ResourceID)

	if reserved+loan.Quantity > totalVolumes {
		if s.logger != nil {
			s.logger.Info("loan insert rejected, insufficient stock",
				"resource_id", loan.ResourceID.String(),
				"reserved", reserved,
				"requested", loan.Quantity,
				"volumes", totalVolumes)
		}

		return loans.ErrInsufficientStock
	}

	s.byID[loan.ID] = cloned(loan)

	return nil
}

// Get returns the loan with the given id, or loans.ErrLoanNotFound.
func (s *LoanStore) Get(_ context.Context, id uuid.UUID) (loans.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.byID[id]
	if !ok {
		return loans.Loan{}, loans.ErrLoanNotFound
	}

	return cloned(loan), nil
}

// Update replaces the stored loan if its version still matches the version the
// caller loaded. On success the stored version is incremented. Fails with
// loans.ErrStaleLoanState when the loan was mutated concurrently and with
// loans.ErrLoanNotFound when it does not exist.
func (s *LoanStore) Update(_ context.Context, loan loans.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[loan.ID]
	if !ok {
		return loans.ErrLoanNotFound
	}

	if current.Version != loan.Version {
		return loans.ErrStaleLoanState
	}

	updated := cloned(loan)
	updated.Version++
	s.byID[loan.ID] = updated

	return nil
}

// List returns the loans matching the filter, newest loan date first,
// restricted to the requested page, together with the total match count.
func (s *LoanStore) List(_ context.Context, filter loans.Filter, page loans.Page, now time.Time) ([]loans.Loan, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]loans.Loan, 0)

	for _, loan := range s.byID {
		if filter.Matches(loan, now) {
			matches = append(matches, cloned(loan))
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].LoanDate.Equal(matches[j].LoanDate) {
			return matches[i].LoanDate.After(matches[j].LoanDate)
		}

		return matches[i].ID.String() < matches[j].ID.String()
	})

	total := int64(len(matches))
	normalized := page.Normalized()
	offset := page.Offset()

	if offset >= len(matches) {
		return []loans.Loan{}, total, nil
	}

	end := offset + normalized.Limit
	if end > len(matches) {
		end = len(matches)
	}

	return matches[offset:end], total, nil
}

// ReservedQuantity returns the summed quantity of loans currently tying up
// units of the resource, meaning stored-active plus lost loans.
func (s *LoanStore) ReservedQuantity(_ context.Context, resourceID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reservedQuantityLocked(resourceID), nil
}

// CountActiveByPerson returns the number of stored-active loans of one person.
func (s *LoanStore) CountActiveByPerson(_ context.Context, personID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0

	for _, loan := range s.byID {
		if loan.PersonID == personID && loan.Status == loans.StatusActive {
			count++
		}
	}

	return count, nil
}

// CountOverdueByPerson returns the number of derived-overdue loans of one person.
func (s *LoanStore) CountOverdueByPerson(_ context.Context, personID uuid.UUID, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0

	for _, loan := range s.byID {
		if loan.PersonID == personID && loans.IsOverdue(loan, now) {
			count++
		}
	}

	return count, nil
}

// StatusCounts returns the per-status loan counts at the given instant.
func (s *LoanStore) StatusCounts(_ context.Context, now time.Time) (loans.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := loans.StatusCounts{}

	for _, loan := range s.byID {
		counts.Total++

		switch loans.DerivedStatus(loan, now) {
		case loans.StatusActive:
			counts.Active++
		case loans.StatusOverdue:
			counts.Overdue++
		case loans.StatusReturned:
			counts.Returned++
		case loans.StatusLost:
			counts.Lost++
		}
	}

	return counts, nil
}

// ActivitySince counts new loans, returns, and renewals with a timestamp at or
// after the given instant. Only the latest renewal date is stored per loan,
// so a loan renewed twice within the window counts as one renewal.
func (s *LoanStore) ActivitySince(_ context.Context, from time.Time) (loans.PeriodActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity := loans.PeriodActivity{}

	for _, loan := range s.byID {
		if !loan.LoanDate.Before(from) {
			activity.NewLoans++
		}

		if loan.ReturnedDate != nil && !loan.ReturnedDate.Before(from) {
			activity.Returns++
		}

		if loan.LastRenewedAt != nil && !loan.LastRenewedAt.Before(from) {
			activity.Renewals++
		}
	}

	return activity, nil
}

// TopResources returns the most loaned resources, descending by loan count.
func (s *LoanStore) TopResources(_ context.Context, limit int) ([]loans.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uuid.UUID]int64)

	for _, loan := range s.byID {
		counts[loan.ResourceID]++
	}

	return ranked(counts, limit), nil
}

// TopBorrowers returns the most active borrowers, descending by loan count.
func (s *LoanStore) TopBorrowers(_ context.Context, limit int) ([]loans.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uuid.UUID]int64)

	for _, loan := range s.byID {
		counts[loan.PersonID]++
	}

	return ranked(counts, limit), nil
}

func (s *LoanStore) reservedQuantityLocked(resourceID uuid.UUID) int {
	reserved := 0

	for _, loan := range s.byID {
		if loan.ResourceID != resourceID {
			continue
		}

		if loan.Status == loans.StatusActive || loan.Status == loans.StatusLost {
			reserved += loan.Quantity
		}
	}

	return reserved
}

func ranked(counts map[uuid.UUID]int64, limit int) []loans.RankingEntry {
	entries := make([]loans.RankingEntry, 0, len(counts))

	for id, count := range counts {
		entries = append(entries, loans.RankingEntry{ID: id, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}

		return entries[i].ID.String() < entries[j].ID.String()
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries
}

// cloned returns a deep copy so callers can never alias stored pointer fields.
func cloned(loan loans.Loan) loans.Loan {
	loan.ReturnedDate = clonedTime(loan.ReturnedDate)
	loan.LostDate = clonedTime(loan.LostDate)
	loan.LastRenewedAt = clonedTime(loan.LastRenewedAt)

	return loan
}

func clonedTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t
	return &c
}
