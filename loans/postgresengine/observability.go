package postgresengine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/schoollib/loanengine/loans"
	"github.com/schoollib/loanengine/loans/postgresengine/internal/adapters"
)

const (
	metricQueryDuration     = "loanstore_query_duration_seconds"
	metricInsufficientStock = "loanstore_insufficient_stock_total"
	metricStaleUpdate       = "loanstore_stale_update_total"

	labelAction   = "action"
	labelResource = "resource_id"

	spanStatusOK    = "ok"
	spanStatusError = "error"
)

// query executes a SELECT statement through the adapter with debug logging,
// duration metrics and an optional span around the round trip.
func (s *LoanStore) query(ctx context.Context, action string, sqlQuery string) (adapters.DBRows, error) {
	ctx, span := s.startSpan(ctx, "loanstore."+action)

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)

	s.logQueryWithDuration(ctx, sqlQuery, action, duration)
	s.recordDuration(ctx, action, duration)

	if queryErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "database query execution failed", queryErr, sqlQuery)

		return nil, errors.Join(loans.ErrQueryingLoansFailed, queryErr)
	}

	s.finishSpan(span, spanStatusOK)

	return rows, nil
}

// exec executes a mutating statement through the adapter and returns the
// affected row count.
func (s *LoanStore) exec(ctx context.Context, action string, sqlQuery string) (int64, error) {
	ctx, span := s.startSpan(ctx, "loanstore."+action)

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)

	s.logQueryWithDuration(ctx, sqlQuery, action, duration)
	s.recordDuration(ctx, action, duration)

	if execErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "database execution failed", execErr, sqlQuery)

		return 0, execErr
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "failed to get rows affected count", rowsAffectedErr, sqlQuery)

		return 0, errors.Join(loans.ErrRowsAffectedFailed, rowsAffectedErr)
	}

	s.finishSpan(span, spanStatusOK)

	return rowsAffected, nil
}

// execReserve runs the advisory lock and the conditional insert as two
// statements in one transaction. A writer holding the lock may commit while
// we wait for it, so the insert must start only after the lock is granted to
// see that commit in its snapshot.
func (s *LoanStore) execReserve(ctx context.Context, lockQuery string, insertQuery string) (int64, error) {
	ctx, span := s.startSpan(ctx, "loanstore.insert")
	start := time.Now()

	tx, beginErr := s.db.BeginTx(ctx)
	if beginErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "failed to begin transaction", beginErr, insertQuery)

		return 0, errors.Join(loans.ErrQueryingLoansFailed, beginErr)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, lockErr := tx.Exec(ctx, lockQuery); lockErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "failed to take resource lock", lockErr, lockQuery)

		return 0, lockErr
	}

	result, execErr := tx.Exec(ctx, insertQuery)
	if execErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "database execution failed", execErr, insertQuery)

		return 0, execErr
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "failed to get rows affected count", rowsAffectedErr, insertQuery)

		return 0, errors.Join(loans.ErrRowsAffectedFailed, rowsAffectedErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		s.finishSpan(span, spanStatusError)
		s.logError(ctx, "failed to commit transaction", commitErr, insertQuery)

		return 0, commitErr
	}

	duration := time.Since(start)
	s.logQueryWithDuration(ctx, insertQuery, "insert", duration)
	s.recordDuration(ctx, "insert", duration)
	s.finishSpan(span, spanStatusOK)

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *LoanStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn("failed to close database rows", "error", closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level.
func (s *LoanStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if s.ctxLogger != nil {
		s.ctxLogger.DebugContext(ctx, "executed sql for: "+action,
			"duration_ms", durationToMilliseconds(duration), "query", sqlQuery)
		return
	}

	if s.logger != nil {
		s.logger.Debug("executed sql for: "+action,
			"duration_ms", durationToMilliseconds(duration), "query", sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (s *LoanStore) logOperation(ctx context.Context, msg string, args ...any) {
	if s.ctxLogger != nil {
		s.ctxLogger.InfoContext(ctx, "loanstore operation: "+msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info("loanstore operation: "+msg, args...)
	}
}

func (s *LoanStore) logError(ctx context.Context, msg string, err error, sqlQuery string) {
	if s.ctxLogger != nil {
		s.ctxLogger.ErrorContext(ctx, msg, "error", err.Error(), "query", sqlQuery)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, "error", err.Error(), "query", sqlQuery)
	}
}

func (s *LoanStore) recordDuration(ctx context.Context, action string, duration time.Duration) {
	if s.metrics == nil {
		return
	}

	labels := map[string]string{labelAction: action}

	if contextual, ok := s.metrics.(loans.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricQueryDuration, duration, labels)
		return
	}

	s.metrics.RecordDuration(metricQueryDuration, duration, labels)
}

func (s *LoanStore) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metrics == nil {
		return
	}

	if contextual, ok := s.metrics.(loans.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metrics.IncrementCounter(metric, labels)
}

func (s *LoanStore) startSpan(ctx context.Context, name string) (context.Context, loans.SpanContext) {
	if s.tracing == nil {
		return ctx, nil
	}

	return s.tracing.StartSpan(ctx, name, nil)
}

func (s *LoanStore) finishSpan(span loans.SpanContext, status string) {
	if s.tracing == nil || span == nil {
		return
	}

	s.tracing.FinishSpan(span, status, nil)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
