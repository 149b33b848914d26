package testdoubles

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/lending"
	"github.com/schoollib/loanengine/loans"
)

// NotificationSpy captures lifecycle notifications for assertions.
type NotificationSpy struct {
	notifications []Notification
	mu            sync.Mutex
}

// Notification represents one recorded Notify call.
type Notification struct {
	Event   string
	Payload any
}

// NewNotificationSpy creates a new NotificationSpy.
func NewNotificationSpy() *NotificationSpy {
	return &NotificationSpy{}
}

// Notify implements the NotificationSink interface for testing.
func (s *NotificationSpy) Notify(_ context.Context, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, Notification{Event: event, Payload: payload})
}

// Notifications returns a copy of all recorded notifications.
func (s *NotificationSpy) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Notification(nil), s.notifications...)
}

// HasEvent checks whether a notification with the event name was recorded.
func (s *NotificationSpy) HasEvent(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, notification := range s.notifications {
		if notification.Event == event {
			return true
		}
	}

	return false
}

// PenaltyAssessorSpy captures post-return assessments for assertions.
// A non-nil Err is returned from every AssessReturn call.
type PenaltyAssessorSpy struct {
	Err         error
	assessments []Assessment
	mu          sync.Mutex
}

// Assessment represents one recorded AssessReturn call.
type Assessment struct {
	LoanID  uuid.UUID
	Outcome lending.ReturnOutcome
}

// NewPenaltyAssessorSpy creates a new PenaltyAssessorSpy.
func NewPenaltyAssessorSpy() *PenaltyAssessorSpy {
	return &PenaltyAssessorSpy{}
}

// AssessReturn implements the PenaltyAssessor interface for testing.
func (s *PenaltyAssessorSpy) AssessReturn(_ context.Context, loan loans.Loan, outcome lending.ReturnOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assessments = append(s.assessments, Assessment{LoanID: loan.ID, Outcome: outcome})

	return s.Err
}

// Assessments returns a copy of all recorded assessments.
func (s *PenaltyAssessorSpy) Assessments() []Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Assessment(nil), s.assessments...)
}

var (
	_ loans.NotificationSink  = (*NotificationSpy)(nil)
	_ lending.PenaltyAssessor = (*PenaltyAssessorSpy)(nil)
)
