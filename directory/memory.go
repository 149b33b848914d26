package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schoollib/loanengine/loans"
)

// InMemoryDirectory is a map-backed directory for local development and
// tests. It implements loans.PersonDirectory and loans.ResourceCatalog.
type InMemoryDirectory struct {
	mu        sync.RWMutex
	people    map[uuid.UUID]loans.Person
	resources map[uuid.UUID]loans.Resource
}

// NewInMemoryDirectory creates an empty InMemoryDirectory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		people:    make(map[uuid.UUID]loans.Person),
		resources: make(map[uuid.UUID]loans.Resource),
	}
}

// AddPerson registers or replaces a person.
func (d *InMemoryDirectory) AddPerson(person loans.Person) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.people[person.ID] = person
}

// AddResource registers or replaces a resource.
func (d *InMemoryDirectory) AddResource(resource loans.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resources[resource.ID] = resource
}

// PersonByID looks up one person.
func (d *InMemoryDirectory) PersonByID(_ context.Context, id uuid.UUID) (loans.Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	person, found := d.people[id]
	if !found {
		return loans.Person{}, loans.ErrPersonNotFound
	}

	return person, nil
}

// ResourceByID looks up one resource.
func (d *InMemoryDirectory) ResourceByID(_ context.Context, id uuid.UUID) (loans.Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	resource, found := d.resources[id]
	if !found {
		return loans.Resource{}, loans.ErrResourceNotFound
	}

	return resource, nil
}
