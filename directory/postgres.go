// Package directory provides read gateways to the people and resource
// registries owned by other parts of the system. The lending service only
// needs two lookups, so the gateways stay deliberately small.
package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoollib/loanengine/loans"
)

const (
	defaultPeopleTable    = "people"
	defaultResourcesTable = "resources"
)

// PostgresDirectory reads people and resources from the registry tables.
// It implements loans.PersonDirectory and loans.ResourceCatalog.
type PostgresDirectory struct {
	db             *sqlx.DB
	peopleTable    string
	resourcesTable string
}

// PostgresOption configures a PostgresDirectory.
type PostgresOption func(*PostgresDirectory)

// WithPeopleTable overrides the people table name.
func WithPeopleTable(name string) PostgresOption {
	return func(d *PostgresDirectory) {
		d.peopleTable = name
	}
}

// WithResourcesTable overrides the resources table name.
func WithResourcesTable(name string) PostgresOption {
	return func(d *PostgresDirectory) {
		d.resourcesTable = name
	}
}

// NewPostgresDirectory creates a directory over the given connection.
func NewPostgresDirectory(db *sqlx.DB, options ...PostgresOption) (*PostgresDirectory, error) {
	if db == nil {
		return nil, loans.ErrNilDatabaseConnection
	}

	directory := &PostgresDirectory{
		db:             db,
		peopleTable:    defaultPeopleTable,
		resourcesTable: defaultResourcesTable,
	}

	for _, option := range options {
		option(directory)
	}

	return directory, nil
}

type personRow struct {
	ID     string `db:"id"`
	Active bool   `db:"active"`
}

// PersonByID looks up one person.
func (d *PostgresDirectory) PersonByID(ctx context.Context, id uuid.UUID) (loans.Person, error) {
	var row personRow

	query := `SELECT id, active FROM ` + d.peopleTable + ` WHERE id = $1`

	if err := d.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return loans.Person{}, loans.ErrPersonNotFound
		}

		return loans.Person{}, errors.Join(loans.ErrQueryingLoansFailed, err)
	}

	personID, err := uuid.Parse(row.ID)
	if err != nil {
		return loans.Person{}, errors.Join(loans.ErrScanningDBRowFailed, err)
	}

	return loans.Person{ID: personID, Active: row.Active}, nil
}

type resourceRow struct {
	ID      string `db:"id"`
	Volumes int    `db:"volumes"`
	StateID string `db:"state_id"`
}

// ResourceByID looks up one resource.
func (d *PostgresDirectory) ResourceByID(ctx context.Context, id uuid.UUID) (loans.Resource, error) {
	var row resourceRow

	query := `SELECT id, volumes, state_id FROM ` + d.resourcesTable + ` WHERE id = $1`

	if err := d.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return loans.Resource{}, loans.ErrResourceNotFound
		}

		return loans.Resource{}, errors.Join(loans.ErrQueryingLoansFailed, err)
	}

	resourceID, err := uuid.Parse(row.ID)
	if err != nil {
		return loans.Resource{}, errors.Join(loans.ErrScanningDBRowFailed, err)
	}

	return loans.Resource{ID: resourceID, Volumes: row.Volumes, StateID: row.StateID}, nil
}
