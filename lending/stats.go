package lending

import (
	"context"
	"time"

	"github.com/schoollib/loanengine/loans"
)

const defaultTopN = 10

// StatsSummary is the aggregated statistics view served by the dashboard
// endpoint. All counts are computed on demand at the evaluation instant.
type StatsSummary struct {
	Counts       loans.StatusCounts   `json:"counts"`
	Today        loans.PeriodActivity `json:"today"`
	ThisWeek     loans.PeriodActivity `json:"thisWeek"`
	ThisMonth    loans.PeriodActivity `json:"thisMonth"`
	TopResources []loans.RankingEntry `json:"topResources"`
	TopBorrowers []loans.RankingEntry `json:"topBorrowers"`
}

// StatisticsAggregator assembles the summary from the store's aggregate
// queries. The week starts on Monday and the month on its first day, both
// at local midnight.
type StatisticsAggregator struct {
	store LoanStore
	clock Clock
	topN  int
}

// NewStatisticsAggregator creates a StatisticsAggregator over the store.
func NewStatisticsAggregator(store LoanStore, clock Clock) *StatisticsAggregator {
	return &StatisticsAggregator{
		store: store,
		clock: clock,
		topN:  defaultTopN,
	}
}

// Summary computes the full statistics summary.
func (a *StatisticsAggregator) Summary(ctx context.Context) (StatsSummary, error) {
	now := a.clock()

	counts, err := a.store.StatusCounts(ctx, now)
	if err != nil {
		return StatsSummary{}, err
	}

	today, err := a.store.ActivitySince(ctx, startOfDay(now))
	if err != nil {
		return StatsSummary{}, err
	}

	week, err := a.store.ActivitySince(ctx, startOfWeek(now))
	if err != nil {
		return StatsSummary{}, err
	}

	month, err := a.store.ActivitySince(ctx, startOfMonth(now))
	if err != nil {
		return StatsSummary{}, err
	}

	topResources, err := a.store.TopResources(ctx, a.topN)
	if err != nil {
		return StatsSummary{}, err
	}

	topBorrowers, err := a.store.TopBorrowers(ctx, a.topN)
	if err != nil {
		return StatsSummary{}, err
	}

	return StatsSummary{
		Counts:       counts,
		Today:        today,
		ThisWeek:     week,
		ThisMonth:    month,
		TopResources: topResources,
		TopBorrowers: topBorrowers,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)

	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}

	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
