package lending

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/loans"
)

// Service owns the loan lifecycle: creation, renewal, return, and loss.
// It is the single authoritative implementation of the lending rules - the
// UI layer consumes it through the HTTP API and must not duplicate them.
//
// Every mutation follows the same workflow: load, decide with a pure
// function, write conditionally, and retry on a stale read. No precondition
// failure ever leaves a partial transition behind, because the decision
// happens before the single conditional write.
type Service struct {
	store        LoanStore
	people       loans.PersonDirectory
	catalog      loans.ResourceCatalog
	notifier     loans.NotificationSink
	penalty      PenaltyAssessor
	policy       Policy
	clock        Clock
	logger       loans.ContextualLogger
	metrics      loans.MetricsCollector
	retryOptions []RetryOption

	eligibility  *EligibilityEvaluator
	availability *AvailabilityTracker
	statistics   *StatisticsAggregator
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithPolicy replaces the default lending policy.
func WithPolicy(policy Policy) ServiceOption {
	return func(s *Service) error {
		if err := policy.Validate(); err != nil {
			return err
		}

		s.policy = policy

		return nil
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) error {
		s.clock = clock
		return nil
	}
}

// WithNotificationSink sets the sink receiving lifecycle events.
func WithNotificationSink(sink loans.NotificationSink) ServiceOption {
	return func(s *Service) error {
		s.notifier = sink
		return nil
	}
}

// WithPenaltyAssessor sets the post-return hook.
func WithPenaltyAssessor(assessor PenaltyAssessor) ServiceOption {
	return func(s *Service) error {
		s.penalty = assessor
		return nil
	}
}

// WithContextualLogger sets the logger for the service.
func WithContextualLogger(logger loans.ContextualLogger) ServiceOption {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithMetricsCollector sets the metrics collector for the service.
func WithMetricsCollector(collector loans.MetricsCollector) ServiceOption {
	return func(s *Service) error {
		s.metrics = collector
		return nil
	}
}

// WithRetryOptions sets a custom retry configuration for stale-state conflicts.
func WithRetryOptions(options ...RetryOption) ServiceOption {
	return func(s *Service) error {
		s.retryOptions = options
		return nil
	}
}

// NewService creates a Service over the given store and gateways with
// optional configuration.
func NewService(
	store LoanStore,
	people loans.PersonDirectory,
	catalog loans.ResourceCatalog,
	options ...ServiceOption,
) (*Service, error) {

	service := &Service{
		store:   store,
		people:  people,
		catalog: catalog,
		penalty: NopPenaltyAssessor{},
		policy:  DefaultPolicy(),
		clock:   time.Now,
	}

	for _, option := range options {
		if err := option(service); err != nil {
			return nil, err
		}
	}

	service.eligibility = NewEligibilityEvaluator(service.store, service.people, service.policy, service.clock)
	service.availability = NewAvailabilityTracker(service.store, service.catalog, service.metrics)
	service.statistics = NewStatisticsAggregator(service.store, service.clock)

	return service, nil
}

// CreateLoanCommand carries the input of CreateLoan.
// A zero Quantity defaults to 1.
type CreateLoanCommand struct {
	PersonID     uuid.UUID
	ResourceID   uuid.UUID
	Quantity     int
	Observations string
}

// CreateLoan opens a new loan.
//
// Eligibility is evaluated here again even if the caller already consulted
// CanBorrow, and the reservation is the store's atomic check-and-insert, so
// two concurrent creates for the last free unit cannot both succeed.
func (s *Service) CreateLoan(ctx context.Context, command CreateLoanCommand) (loans.Loan, error) {
	quantity := command.Quantity
	if quantity == 0 {
		quantity = 1
	}

	if quantity < 1 {
		return loans.Loan{}, loans.ErrInvalidQuantity
	}

	resource, err := s.catalog.ResourceByID(ctx, command.ResourceID)
	if err != nil {
		return loans.Loan{}, err
	}

	if quantity > resource.Volumes {
		return loans.Loan{}, loans.ErrInvalidQuantity
	}

	eligibility, err := s.eligibility.CanBorrow(ctx, command.PersonID)
	if err != nil {
		return loans.Loan{}, err
	}

	if eligibilityErr := eligibility.Err(); eligibilityErr != nil {
		s.logInfo(ctx, "loan creation rejected",
			"person_id", command.PersonID.String(),
			"reason", eligibility.Reason)

		return loans.Loan{}, eligibilityErr
	}

	loan, err := loans.BuildLoan(
		command.PersonID,
		command.ResourceID,
		quantity,
		s.clock(),
		s.policy.LoanDurationDays,
		command.Observations,
	)
	if err != nil {
		return loans.Loan{}, err
	}

	if err := s.availability.Reserve(ctx, loan, resource.Volumes); err != nil {
		return loans.Loan{}, err
	}

	s.logInfo(ctx, "loan created", "loan_id", loan.ID.String(), "resource_id", loan.ResourceID.String())
	s.notify(ctx, EventLoanCreated, loan)

	return loan, nil
}

// RenewLoanResponse carries the renewed loan together with the due date change.
type RenewLoanResponse struct {
	Loan       loans.Loan `json:"loan"`
	OldDueDate time.Time  `json:"oldDueDate"`
	NewDueDate time.Time  `json:"newDueDate"`
}

// RenewLoan extends the due date of an active loan. A derived-overdue loan
// is still active and may be renewed; returned and lost loans may not.
func (s *Service) RenewLoan(ctx context.Context, loanID uuid.UUID, additionalDays int, observations string) (RenewLoanResponse, error) {
	var response RenewLoanResponse

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		loan, getErr := s.store.Get(retryCtx, loanID)
		if getErr != nil {
			return getErr
		}

		renewed, decideErr := DecideRenewal(loan, s.clock(), additionalDays, s.policy)
		if decideErr != nil {
			return decideErr
		}

		if observations != "" {
			renewed.Observations = joinObservations(renewed.Observations, observations)
		}

		if updateErr := s.store.Update(retryCtx, renewed); updateErr != nil {
			return updateErr
		}

		renewed.Version++
		response = RenewLoanResponse{
			Loan:       renewed,
			OldDueDate: loan.DueDate,
			NewDueDate: renewed.DueDate,
		}

		return nil
	}, s.retryOptions...)

	if err != nil {
		return RenewLoanResponse{}, err
	}

	s.logInfo(ctx, "loan renewed", "loan_id", loanID.String(), "renewal_count", response.Loan.RenewalCount)
	s.notify(ctx, EventLoanRenewed, response)

	return response, nil
}

// ReturnLoanResponse carries the returned loan and its overdue outcome.
type ReturnLoanResponse struct {
	Loan        loans.Loan `json:"loan"`
	WasOverdue  bool       `json:"wasOverdue"`
	DaysOverdue int        `json:"daysOverdue"`
}

// ReturnLoan closes an active loan and frees its units. Returning an
// already-returned loan always fails with loans.ErrLoanAlreadyReturned and
// leaves the record unchanged.
func (s *Service) ReturnLoan(ctx context.Context, loanID uuid.UUID, returnObservations string, resourceCondition string) (ReturnLoanResponse, error) {
	var response ReturnLoanResponse

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		loan, getErr := s.store.Get(retryCtx, loanID)
		if getErr != nil {
			return getErr
		}

		returned, outcome, decideErr := DecideReturn(loan, s.clock(), returnObservations, resourceCondition)
		if decideErr != nil {
			return decideErr
		}

		if updateErr := s.store.Update(retryCtx, returned); updateErr != nil {
			return updateErr
		}

		returned.Version++
		response = ReturnLoanResponse{
			Loan:        returned,
			WasOverdue:  outcome.WasOverdue,
			DaysOverdue: outcome.DaysOverdue,
		}

		return nil
	}, s.retryOptions...)

	if err != nil {
		return ReturnLoanResponse{}, err
	}

	s.availability.Release(ctx, response.Loan.ResourceID)

	outcome := ReturnOutcome{WasOverdue: response.WasOverdue, DaysOverdue: response.DaysOverdue}
	if assessErr := s.penalty.AssessReturn(ctx, response.Loan, outcome); assessErr != nil {
		s.logWarn(ctx, "penalty assessment failed", "loan_id", loanID.String(), "error", assessErr.Error())
	}

	s.logInfo(ctx, "loan returned", "loan_id", loanID.String(), "was_overdue", response.WasOverdue)
	s.notify(ctx, EventLoanReturned, response)

	return response, nil
}

// MarkAsLost closes an active loan as lost. The units stay reserved until an
// inventory correction outside this subsystem restores them, so availability
// does not recover.
func (s *Service) MarkAsLost(ctx context.Context, loanID uuid.UUID, observations string) (loans.Loan, error) {
	var lost loans.Loan

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		loan, getErr := s.store.Get(retryCtx, loanID)
		if getErr != nil {
			return getErr
		}

		decided, decideErr := DecideLoss(loan, s.clock(), observations)
		if decideErr != nil {
			return decideErr
		}

		if updateErr := s.store.Update(retryCtx, decided); updateErr != nil {
			return updateErr
		}

		decided.Version++
		lost = decided

		return nil
	}, s.retryOptions...)

	if err != nil {
		return loans.Loan{}, err
	}

	s.logInfo(ctx, "loan marked as lost", "loan_id", loanID.String())
	s.notify(ctx, EventLoanLost, lost)

	return lost, nil
}

// GetLoan returns one loan with its derived status view.
func (s *Service) GetLoan(ctx context.Context, loanID uuid.UUID) (LoanView, error) {
	loan, err := s.store.Get(ctx, loanID)
	if err != nil {
		return LoanView{}, err
	}

	return NewLoanView(loan, s.clock()), nil
}

// ListLoansQuery describes a loan search.
type ListLoansQuery struct {
	PersonID    uuid.UUID
	ResourceID  uuid.UUID
	Status      loans.Status
	OverdueOnly bool
	LoanedFrom  time.Time
	LoanedUntil time.Time
	DueFrom     time.Time
	DueUntil    time.Time
	Page        loans.Page
}

// ListLoans returns the matching loans with derived status fields and the
// pagination envelope. Passing StatusOverdue behaves like OverdueOnly.
func (s *Service) ListLoans(ctx context.Context, query ListLoansQuery) ([]LoanView, loans.Pagination, error) {
	builder := loans.BuildLoanFilter()

	if query.PersonID != uuid.Nil {
		builder.WithPersonID(query.PersonID)
	}

	if query.ResourceID != uuid.Nil {
		builder.WithResourceID(query.ResourceID)
	}

	switch {
	case query.OverdueOnly || query.Status == loans.StatusOverdue:
		builder.OverdueOnly()
	case query.Status != "":
		builder.WithAnyStatusOf(query.Status)
	}

	builder.LoanedBetween(query.LoanedFrom, query.LoanedUntil)
	builder.DueBetween(query.DueFrom, query.DueUntil)

	now := s.clock()

	result, total, err := s.store.List(ctx, builder.Finalize(), query.Page, now)
	if err != nil {
		return nil, loans.Pagination{}, err
	}

	views := make([]LoanView, 0, len(result))
	for _, loan := range result {
		views = append(views, NewLoanView(loan, now))
	}

	return views, loans.BuildPagination(query.Page, total), nil
}

// CanBorrow evaluates whether the person may open a new loan right now.
// This is the advisory check; CreateLoan re-evaluates before writing.
func (s *Service) CanBorrow(ctx context.Context, personID uuid.UUID) (CanBorrowResult, error) {
	return s.eligibility.CanBorrow(ctx, personID)
}

// Available returns the number of free units of the resource.
func (s *Service) Available(ctx context.Context, resourceID uuid.UUID) (int, error) {
	return s.availability.Available(ctx, resourceID)
}

// Stats returns the aggregated loan statistics summary.
func (s *Service) Stats(ctx context.Context) (StatsSummary, error) {
	return s.statistics.Summary(ctx)
}

func (s *Service) notify(ctx context.Context, event string, payload any) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, event, payload)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
