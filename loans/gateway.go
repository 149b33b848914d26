package loans

import (
	"context"

	"github.com/google/uuid"
)

// Person is the read-only projection of a person record owned by the
// people subsystem. Only the active flag matters for lending decisions.
type Person struct {
	ID     uuid.UUID `json:"id"`
	Active bool      `json:"active"`
}

// Resource is the read-only projection of a resource record owned by the
// catalog subsystem. Volumes is the total physical unit count and does not
// change due to loan activity.
type Resource struct {
	ID      uuid.UUID `json:"id"`
	Volumes int       `json:"volumes"`
	StateID string    `json:"stateId"`
}

// PersonDirectory looks up people in the external people subsystem.
type PersonDirectory interface {
	PersonByID(ctx context.Context, id uuid.UUID) (Person, error)
}

// ResourceCatalog looks up resources in the external catalog subsystem.
type ResourceCatalog interface {
	ResourceByID(ctx context.Context, id uuid.UUID) (Resource, error)
}

// NotificationSink receives lifecycle events for delivery to users.
// Delivery (toasts, email, ...) is owned by an external subsystem; failures
// there must never affect loan state, so the method returns nothing.
type NotificationSink interface {
	Notify(ctx context.Context, event string, payload any)
}
