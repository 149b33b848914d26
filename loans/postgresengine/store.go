package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/schoollib/loanengine/loans"
	"github.com/schoollib/loanengine/loans/postgresengine/internal/adapters"
)

const (
	defaultLoansTableName = "loans"

	colID                 = "id"
	colPersonID           = "person_id"
	colResourceID         = "resource_id"
	colQuantity           = "quantity"
	colLoanDate           = "loan_date"
	colDueDate            = "due_date"
	colReturnedDate       = "returned_date"
	colLostDate           = "lost_date"
	colRenewedDate        = "renewed_date"
	colStatus             = "status"
	colObservations       = "observations"
	colReturnObservations = "return_observations"
	colRenewalCount       = "renewal_count"
	colVersion            = "version"

	defaultRankingLimit = 10

	cteReserved     = "reserved"
	aliasTaken      = "taken"
	aliasCount      = "cnt"
	dialectPostgres = "postgres"
)

type sqlQueryString = string

// LoanStore is a Postgres-backed store for loan records.
//
// The availability guarantee lives here: inserting a new loan takes a
// per-resource advisory lock and then runs a conditional INSERT whose
// snapshot is taken after the lock, so two concurrent creates can never
// over-book a resource. Transitions are conditional updates guarded by the
// loan version; zero affected rows surface as loans.ErrStaleLoanState.
type LoanStore struct {
	db             adapters.DBAdapter
	loansTableName string
	logger         loans.Logger
	ctxLogger      loans.ContextualLogger
	metrics        loans.MetricsCollector
	tracing        loans.TracingCollector
}

// NewLoanStoreFromPGXPool creates a new LoanStore using a pgx pool with optional configuration.
func NewLoanStoreFromPGXPool(pool *pgxpool.Pool, options ...Option) (*LoanStore, error) {
	if pool == nil {
		return nil, loans.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewPGXAdapter(pool), options...)
}

// NewLoanStoreFromSQLDB creates a new LoanStore using a sql.DB with optional configuration.
func NewLoanStoreFromSQLDB(db *sql.DB, options ...Option) (*LoanStore, error) {
	if db == nil {
		return nil, loans.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewSQLAdapter(db), options...)
}

// NewLoanStoreFromSQLX creates a new LoanStore using a sqlx.DB with optional configuration.
func NewLoanStoreFromSQLX(db *sqlx.DB, options ...Option) (*LoanStore, error) {
	if db == nil {
		return nil, loans.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewSQLXAdapter(db), options...)
}

func newLoanStore(db adapters.DBAdapter, options ...Option) (*LoanStore, error) {
	store := &LoanStore{
		db:             db,
		loansTableName: defaultLoansTableName,
	}

	for _, option := range options {
		if err := option(store); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Insert stores a new active loan if the resource still has enough free
// units. Two statements run inside one transaction: first a
// transaction-scoped advisory lock on the resource id, then a conditional
// INSERT whose CTE sums the reserved quantity (active plus lost loans) and
// only fires when the new quantity still fits into totalVolumes. The lock
// must be its own statement; under read committed a statement snapshots at
// start, so a lock taken partway through the INSERT itself would leave the
// availability read blind to a write that commits while waiting for the
// lock. Zero affected rows mean loans.ErrInsufficientStock.
func (s *LoanStore) Insert(ctx context.Context, loan loans.Loan, totalVolumes int) error {
	lockQuery, buildLockErr := s.buildLockQuery(loan.ResourceID)
	if buildLockErr != nil {
		return buildLockErr
	}

	insertQuery, buildErr := s.buildInsertQuery(loan, totalVolumes)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, err := s.execReserve(ctx, lockQuery, insertQuery)
	if err != nil {
		return errors.Join(loans.ErrStoringLoanFailed, err)
	}

	if rowsAffected == 0 {
		s.logOperation(ctx, "loan insert rejected, insufficient stock",
			"resource_id", loan.ResourceID.String(),
			"requested", loan.Quantity)
		s.incrementCounter(ctx, metricInsufficientStock, map[string]string{labelResource: loan.ResourceID.String()})

		return loans.ErrInsufficientStock
	}

	s.logOperation(ctx, "loan inserted", "loan_id", loan.ID.String())

	return nil
}

// Get returns the loan with the given id, or loans.ErrLoanNotFound.
func (s *LoanStore) Get(ctx context.Context, id uuid.UUID) (loans.Loan, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(s.loanColumns()...).
		Where(goqu.C(colID).Eq(id.String()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return loans.Loan{}, errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := s.query(ctx, "get", sqlQuery)
	if err != nil {
		return loans.Loan{}, err
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return loans.Loan{}, loans.ErrLoanNotFound
	}

	return s.scanLoan(rows)
}

// Update replaces the mutable fields of a loan if the stored version still
// matches the version the caller loaded, incrementing the version in the
// same statement. Fails with loans.ErrStaleLoanState when no row matched.
//
// The caller cannot distinguish "loan gone" from "loan changed" here; it
// re-reads the loan to map the failure onto the state error taxonomy.
func (s *LoanStore) Update(ctx context.Context, loan loans.Loan) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.loansTableName).
		Set(goqu.Record{
			colDueDate:            loan.DueDate,
			colReturnedDate:       nullableTime(loan.ReturnedDate),
			colLostDate:           nullableTime(loan.LostDate),
			colRenewedDate:        nullableTime(loan.LastRenewedAt),
			colStatus:             string(loan.Status),
			colObservations:       loan.Observations,
			colReturnObservations: loan.ReturnObservations,
			colRenewalCount:       loan.RenewalCount,
			colVersion:            goqu.L(colVersion + " + 1"),
		}).
		Where(goqu.And(
			goqu.C(colID).Eq(loan.ID.String()),
			goqu.C(colVersion).Eq(loan.Version),
		))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, err := s.exec(ctx, "update", sqlQuery)
	if err != nil {
		return errors.Join(loans.ErrStoringLoanFailed, err)
	}

	if rowsAffected == 0 {
		s.logOperation(ctx, "loan update rejected, stale state", "loan_id", loan.ID.String())
		s.incrementCounter(ctx, metricStaleUpdate, nil)

		return loans.ErrStaleLoanState
	}

	return nil
}

// List returns the loans matching the filter, newest loan date first,
// restricted to the requested page, together with the total match count.
func (s *LoanStore) List(ctx context.Context, filter loans.Filter, page loans.Page, now time.Time) ([]loans.Loan, int64, error) {
	where := s.filterExpressions(filter, now)
	normalized := page.Normalized()

	countStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(goqu.COUNT("*")).
		Where(where...)

	total, err := s.queryCount(ctx, "list_count", countStmt)
	if err != nil {
		return nil, 0, err
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(s.loanColumns()...).
		Where(where...).
		Order(goqu.I(colLoanDate).Desc(), goqu.I(colID).Asc()).
		Limit(uint(normalized.Limit)).
		Offset(uint(page.Offset()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, 0, errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := s.query(ctx, "list", sqlQuery)
	if err != nil {
		return nil, 0, err
	}
	defer s.closeRows(rows)

	result := make([]loans.Loan, 0, normalized.Limit)

	for rows.Next() {
		loan, scanErr := s.scanLoan(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}

		result = append(result, loan)
	}

	return result, total, nil
}

// ReservedQuantity returns the summed quantity of loans currently tying up
// units of the resource, meaning stored-active plus lost loans.
func (s *LoanStore) ReservedQuantity(ctx context.Context, resourceID uuid.UUID) (int, error) {
	sumStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(goqu.COALESCE(goqu.SUM(colQuantity), 0)).
		Where(
			goqu.C(colResourceID).Eq(resourceID.String()),
			s.reservingStatuses(),
		)

	total, err := s.queryCount(ctx, "reserved_quantity", sumStmt)
	if err != nil {
		return 0, err
	}

	return int(total), nil
}

// CountActiveByPerson returns the number of stored-active loans of one person.
func (s *LoanStore) CountActiveByPerson(ctx context.Context, personID uuid.UUID) (int, error) {
	countStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(goqu.COUNT("*")).
		Where(
			goqu.C(colPersonID).Eq(personID.String()),
			goqu.C(colStatus).Eq(string(loans.StatusActive)),
		)

	total, err := s.queryCount(ctx, "count_active_by_person", countStmt)
	if err != nil {
		return 0, err
	}

	return int(total), nil
}

// CountOverdueByPerson returns the number of derived-overdue loans of one person.
func (s *LoanStore) CountOverdueByPerson(ctx context.Context, personID uuid.UUID, now time.Time) (int, error) {
	countStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(goqu.COUNT("*")).
		Where(
			goqu.C(colPersonID).Eq(personID.String()),
			goqu.C(colStatus).Eq(string(loans.StatusActive)),
			goqu.C(colDueDate).Lt(now),
		)

	total, err := s.queryCount(ctx, "count_overdue_by_person", countStmt)
	if err != nil {
		return 0, err
	}

	return int(total), nil
}

// StatusCounts returns the per-status loan counts at the given instant.
// Derived-overdue loans are counted under Overdue, not under Active.
func (s *LoanStore) StatusCounts(ctx context.Context, now time.Time) (loans.StatusCounts, error) {
	groupStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(colStatus, goqu.COUNT("*").As(aliasCount)).
		GroupBy(colStatus)

	sqlQuery, _, toSQLErr := groupStmt.ToSQL()
	if toSQLErr != nil {
		return loans.StatusCounts{}, errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := s.query(ctx, "status_counts", sqlQuery)
	if err != nil {
		return loans.StatusCounts{}, err
	}
	defer s.closeRows(rows)

	counts := loans.StatusCounts{}

	for rows.Next() {
		var status string
		var count int64

		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return loans.StatusCounts{}, errors.Join(loans.ErrScanningDBRowFailed, scanErr)
		}

		counts.Total += count

		switch loans.Status(status) {
		case loans.StatusActive:
			counts.Active += count
		case loans.StatusReturned:
			counts.Returned += count
		case loans.StatusLost:
			counts.Lost += count
		}
	}

	overdueStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(goqu.COUNT("*")).
		Where(
			goqu.C(colStatus).Eq(string(loans.StatusActive)),
			goqu.C(colDueDate).Lt(now),
		)

	overdue, err := s.queryCount(ctx, "status_counts_overdue", overdueStmt)
	if err != nil {
		return loans.StatusCounts{}, err
	}

	counts.Overdue = overdue
	counts.Active -= overdue

	return counts, nil
}

// ActivitySince counts new loans, returns, and renewals with a timestamp at or
// after the given instant. Only the latest renewal date is stored per loan,
// so a loan renewed twice within the window counts as one renewal.
func (s *LoanStore) ActivitySince(ctx context.Context, from time.Time) (loans.PeriodActivity, error) {
	builder := goqu.Dialect(dialectPostgres)
	activity := loans.PeriodActivity{}

	newLoans, err := s.queryCount(ctx, "activity_new_loans",
		builder.From(s.loansTableName).Select(goqu.COUNT("*")).Where(goqu.C(colLoanDate).Gte(from)))
	if err != nil {
		return loans.PeriodActivity{}, err
	}

	returns, err := s.queryCount(ctx, "activity_returns",
		builder.From(s.loansTableName).Select(goqu.COUNT("*")).Where(goqu.C(colReturnedDate).Gte(from)))
	if err != nil {
		return loans.PeriodActivity{}, err
	}

	renewals, err := s.queryCount(ctx, "activity_renewals",
		builder.From(s.loansTableName).Select(goqu.COUNT("*")).Where(goqu.C(colRenewedDate).Gte(from)))
	if err != nil {
		return loans.PeriodActivity{}, err
	}

	activity.NewLoans = newLoans
	activity.Returns = returns
	activity.Renewals = renewals

	return activity, nil
}

// TopResources returns the most loaned resources, descending by loan count.
func (s *LoanStore) TopResources(ctx context.Context, limit int) ([]loans.RankingEntry, error) {
	return s.queryRanking(ctx, "top_resources", colResourceID, limit)
}

// TopBorrowers returns the most active borrowers, descending by loan count.
func (s *LoanStore) TopBorrowers(ctx context.Context, limit int) ([]loans.RankingEntry, error) {
	return s.queryRanking(ctx, "top_borrowers", colPersonID, limit)
}

// buildLockQuery builds the advisory lock statement that serializes
// concurrent inserts for the same resource.
func (s *LoanStore) buildLockQuery(resourceID uuid.UUID) (sqlQueryString, error) {
	lockStmt := goqu.Dialect(dialectPostgres).
		Select(goqu.L("pg_advisory_xact_lock(hashtextextended(?, 0))", resourceID.String()))

	sqlQuery, _, toSQLErr := lockStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s *LoanStore) buildInsertQuery(loan loans.Loan, totalVolumes int) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	reservedStmt := builder.
		From(s.loansTableName).
		Select(goqu.COALESCE(goqu.SUM(colQuantity), 0).As(aliasTaken)).
		Where(
			goqu.C(colResourceID).Eq(loan.ResourceID.String()),
			s.reservingStatuses(),
		)

	selectStmt := builder.
		From(cteReserved).
		Select(
			goqu.V(loan.ID.String()),
			goqu.V(loan.PersonID.String()),
			goqu.V(loan.ResourceID.String()),
			goqu.V(loan.Quantity),
			goqu.V(loan.LoanDate),
			goqu.V(loan.DueDate),
			goqu.V(string(loan.Status)),
			goqu.V(loan.Observations),
			goqu.V(loan.RenewalCount),
			goqu.V(loan.Version),
		).
		Where(goqu.L("? + ? <= ?", goqu.C(aliasTaken), loan.Quantity, totalVolumes))

	insertStmt := builder.
		Insert(s.loansTableName).
		Cols(colID, colPersonID, colResourceID, colQuantity, colLoanDate, colDueDate, colStatus, colObservations, colRenewalCount, colVersion).
		FromQuery(selectStmt).
		With(cteReserved, reservedStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		if s.logger != nil {
			s.logger.Error("failed to build insert query", "error", toSQLErr.Error())
		}

		return "", errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s *LoanStore) filterExpressions(filter loans.Filter, now time.Time) []goqu.Expression {
	expressions := make([]goqu.Expression, 0)

	if personID, ok := filter.PersonID(); ok {
		expressions = append(expressions, goqu.C(colPersonID).Eq(personID.String()))
	}

	if resourceID, ok := filter.ResourceID(); ok {
		expressions = append(expressions, goqu.C(colResourceID).Eq(resourceID.String()))
	}

	if statuses := filter.Statuses(); len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}

		expressions = append(expressions, goqu.C(colStatus).In(values))
	}

	if filter.OverdueOnly() {
		expressions = append(expressions,
			goqu.C(colStatus).Eq(string(loans.StatusActive)),
			goqu.C(colDueDate).Lt(now),
		)
	}

	if !filter.LoanedFrom().IsZero() {
		expressions = append(expressions, goqu.C(colLoanDate).Gte(filter.LoanedFrom()))
	}

	if !filter.LoanedUntil().IsZero() {
		expressions = append(expressions, goqu.C(colLoanDate).Lte(filter.LoanedUntil()))
	}

	if !filter.DueFrom().IsZero() {
		expressions = append(expressions, goqu.C(colDueDate).Gte(filter.DueFrom()))
	}

	if !filter.DueUntil().IsZero() {
		expressions = append(expressions, goqu.C(colDueDate).Lte(filter.DueUntil()))
	}

	return expressions
}

func (s *LoanStore) reservingStatuses() goqu.Expression {
	return goqu.C(colStatus).In(string(loans.StatusActive), string(loans.StatusLost))
}

func (s *LoanStore) loanColumns() []any {
	return []any{
		colID, colPersonID, colResourceID, colQuantity, colLoanDate, colDueDate,
		colReturnedDate, colLostDate, colRenewedDate, colStatus,
		colObservations, colReturnObservations, colRenewalCount, colVersion,
	}
}

func (s *LoanStore) scanLoan(rows adapters.DBRows) (loans.Loan, error) {
	var (
		id, personID, resourceID string
		returned, lost, renewed  sql.NullTime
		status                   string
		loan                     loans.Loan
	)

	scanErr := rows.Scan(
		&id, &personID, &resourceID, &loan.Quantity, &loan.LoanDate, &loan.DueDate,
		&returned, &lost, &renewed, &status,
		&loan.Observations, &loan.ReturnObservations, &loan.RenewalCount, &loan.Version,
	)
	if scanErr != nil {
		if s.logger != nil {
			s.logger.Error("failed to scan database row", "error", scanErr.Error())
		}

		return loans.Loan{}, errors.Join(loans.ErrScanningDBRowFailed, scanErr)
	}

	loanID, err := uuid.Parse(id)
	if err != nil {
		return loans.Loan{}, errors.Join(loans.ErrScanningDBRowFailed, err)
	}

	person, err := uuid.Parse(personID)
	if err != nil {
		return loans.Loan{}, errors.Join(loans.ErrScanningDBRowFailed, err)
	}

	resource, err := uuid.Parse(resourceID)
	if err != nil {
		return loans.Loan{}, errors.Join(loans.ErrScanningDBRowFailed, err)
	}

	loan.ID = loanID
	loan.PersonID = person
	loan.ResourceID = resource
	loan.Status = loans.Status(status)
	loan.ReturnedDate = timePointer(returned)
	loan.LostDate = timePointer(lost)
	loan.LastRenewedAt = timePointer(renewed)

	return loan, nil
}

func (s *LoanStore) queryCount(ctx context.Context, action string, stmt *goqu.SelectDataset) (int64, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := s.query(ctx, action, sqlQuery)
	if err != nil {
		return 0, err
	}
	defer s.closeRows(rows)

	var count int64

	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			return 0, errors.Join(loans.ErrScanningDBRowFailed, scanErr)
		}
	}

	return count, nil
}

func (s *LoanStore) queryRanking(ctx context.Context, action string, groupCol string, limit int) ([]loans.RankingEntry, error) {
	if limit < 1 {
		limit = defaultRankingLimit
	}

	rankStmt := goqu.Dialect(dialectPostgres).
		From(s.loansTableName).
		Select(groupCol, goqu.COUNT("*").As(aliasCount)).
		GroupBy(groupCol).
		Order(goqu.I(aliasCount).Desc(), goqu.I(groupCol).Asc()).
		Limit(uint(limit))

	sqlQuery, _, toSQLErr := rankStmt.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(loans.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := s.query(ctx, action, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(rows)

	entries := make([]loans.RankingEntry, 0, limit)

	for rows.Next() {
		var rawID string
		var count int64

		if scanErr := rows.Scan(&rawID, &count); scanErr != nil {
			return nil, errors.Join(loans.ErrScanningDBRowFailed, scanErr)
		}

		id, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			return nil, errors.Join(loans.ErrScanningDBRowFailed, parseErr)
		}

		entries = append(entries, loans.RankingEntry{ID: id, Count: count})
	}

	return entries, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func timePointer(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time
	return &value
}
