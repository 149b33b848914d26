package postgresengine

import (
	"github.com/schoollib/loanengine/loans"
)

// Option defines a functional option for configuring a LoanStore.
type Option func(*LoanStore) error

// WithTableName sets the loans table name for the LoanStore.
func WithTableName(tableName string) Option {
	return func(s *LoanStore) error {
		if tableName == "" {
			return loans.ErrEmptyLoansTableName
		}

		s.loansTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the LoanStore.
//
// Debug level: SQL queries with execution timing (development use)
// Info level: operation outcomes, stock rejections, stale updates (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger loans.Logger) Option {
	return func(s *LoanStore) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for the LoanStore.
// When both a Logger and a ContextualLogger are configured, the contextual
// one wins for operations that carry a context.
func WithContextualLogger(logger loans.ContextualLogger) Option {
	return func(s *LoanStore) error {
		s.ctxLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the LoanStore.
func WithMetrics(collector loans.MetricsCollector) Option {
	return func(s *LoanStore) error {
		s.metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the LoanStore.
func WithTracing(collector loans.TracingCollector) Option {
	return func(s *LoanStore) error {
		s.tracing = collector
		return nil
	}
}
