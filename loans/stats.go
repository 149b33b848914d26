package loans

import (
	"github.com/google/uuid"
)

// StatusCounts holds the number of loans per status at one instant.
// Overdue counts stored-active loans whose due date has passed; those loans
// are counted under Overdue and not under Active, so the four buckets sum
// up to Total.
type StatusCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Overdue  int64 `json:"overdue"`
	Returned int64 `json:"returned"`
	Lost     int64 `json:"lost"`
}

// PeriodActivity counts lending activity within one period.
type PeriodActivity struct {
	NewLoans int64 `json:"newLoans"`
	Returns  int64 `json:"returns"`
	Renewals int64 `json:"renewals"`
}

// RankingEntry is one row of a top-N breakdown.
type RankingEntry struct {
	ID    uuid.UUID `json:"id"`
	Count int64     `json:"count"`
}
