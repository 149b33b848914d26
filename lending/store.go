package lending

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/loans"
)

// LoanStore defines the storage operations the lending service needs.
// Both the Postgres engine and the in-memory engine satisfy it.
//
// Insert is the atomic reserve primitive: the availability check and the
// write are one step, so it can fail with loans.ErrInsufficientStock but can
// never over-book. Update is a conditional write guarded by the loan version
// and fails with loans.ErrStaleLoanState when the loan changed concurrently.
type LoanStore interface {
	Insert(ctx context.Context, loan loans.Loan, totalVolumes int) error
	Get(ctx context.Context, id uuid.UUID) (loans.Loan, error)
	Update(ctx context.Context, loan loans.Loan) error
	List(ctx context.Context, filter loans.Filter, page loans.Page, now time.Time) ([]loans.Loan, int64, error)
	ReservedQuantity(ctx context.Context, resourceID uuid.UUID) (int, error)
	CountActiveByPerson(ctx context.Context, personID uuid.UUID) (int, error)
	CountOverdueByPerson(ctx context.Context, personID uuid.UUID, now time.Time) (int, error)
	StatusCounts(ctx context.Context, now time.Time) (loans.StatusCounts, error)
	ActivitySince(ctx context.Context, from time.Time) (loans.PeriodActivity, error)
	TopResources(ctx context.Context, limit int) ([]loans.RankingEntry, error)
	TopBorrowers(ctx context.Context, limit int) ([]loans.RankingEntry, error)
}
