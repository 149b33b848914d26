package lending

import (
	"context"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/loans"
)

const metricAvailableUnits = "lending_available_units"

// AvailabilityTracker answers how many units of a resource are free right
// now and owns the reservation primitive.
//
// Availability is derived: volumes minus the summed quantity of loans that
// tie up units (stored-active plus lost). Reserving is delegated to the
// store's conditional insert, which performs the check-and-decrement as one
// atomic step. Releasing happens implicitly when a loan leaves the active
// state through the same conditional update that persists the return, so a
// reader can never observe a state where availability went below zero.
type AvailabilityTracker struct {
	store   LoanStore
	catalog loans.ResourceCatalog
	metrics loans.MetricsCollector
}

// NewAvailabilityTracker creates a tracker over the given store and catalog.
func NewAvailabilityTracker(store LoanStore, catalog loans.ResourceCatalog, metrics loans.MetricsCollector) *AvailabilityTracker {
	return &AvailabilityTracker{
		store:   store,
		catalog: catalog,
		metrics: metrics,
	}
}

// Available returns the number of free units of the resource.
// Lost loans stay subtracted until an inventory correction outside this
// subsystem restores them.
func (t *AvailabilityTracker) Available(ctx context.Context, resourceID uuid.UUID) (int, error) {
	resource, err := t.catalog.ResourceByID(ctx, resourceID)
	if err != nil {
		return 0, err
	}

	reserved, err := t.store.ReservedQuantity(ctx, resourceID)
	if err != nil {
		return 0, err
	}

	available := resource.Volumes - reserved
	if available < 0 {
		available = 0
	}

	return available, nil
}

// Reserve atomically checks availability and stores the new active loan.
// Fails with loans.ErrInsufficientStock when the loan's quantity exceeds the
// free units at the instant of the check.
func (t *AvailabilityTracker) Reserve(ctx context.Context, loan loans.Loan, totalVolumes int) error {
	if err := t.store.Insert(ctx, loan, totalVolumes); err != nil {
		return err
	}

	t.recordAvailability(ctx, loan.ResourceID)

	return nil
}

// Release refreshes the derived availability after a return freed units.
// The stored release itself is atomic with the return transition; this call
// only updates the exported gauge. It must not be called for lost loans.
func (t *AvailabilityTracker) Release(ctx context.Context, resourceID uuid.UUID) {
	t.recordAvailability(ctx, resourceID)
}

func (t *AvailabilityTracker) recordAvailability(ctx context.Context, resourceID uuid.UUID) {
	if t.metrics == nil {
		return
	}

	available, err := t.Available(ctx, resourceID)
	if err != nil {
		return
	}

	labels := map[string]string{"resource_id": resourceID.String()}

	if contextual, ok := t.metrics.(loans.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metricAvailableUnits, float64(available), labels)
		return
	}

	t.metrics.RecordValue(metricAvailableUnits, float64(available), labels)
}
