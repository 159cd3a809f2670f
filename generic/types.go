/*
Package generic provides the metadata-driven entity store engine.

PURPOSE:
  This package contains domain-agnostic persistence machinery for the fleet
  system. One Store implementation handles every entity - vehicles, accounts,
  movements, maintenance orders - parameterized by a Descriptor that supplies
  the table name, column list, and row mappers. This replaces a pile of
  near-identical per-entity CRUD types with a single engine that guarantees
  identical transactional semantics everywhere.

KEY CONCEPTS IN THIS FILE (types.go):
  - Descriptor: Entity metadata (table, columns, scan/bind, natural order)
  - RowScanner: The minimal scanning surface shared by sql.Row and sql.Rows
  - Querier:   The statement-execution surface shared by sql.DB and sql.Tx

DESIGN PRINCIPLES:
  1. One engine, many entities: descriptors carry the per-entity differences
  2. Parameterized SQL only: column lists are fixed at descriptor definition,
     values always travel as statement arguments
  3. Reads are lenient (missing rows are empty results), writes are strict
     (validated before any statement is issued)

USAGE:
  vehicles := generic.NewStore(db, fleet.VehicleDescriptor())
  v, err := vehicles.FindByID(ctx, 3)

SEE ALSO:
  - store.go: The Store engine itself
  - tx.go: Scoped transactions and the transactional writer
  - errors.go: Error taxonomy and driver-error classification
*/
package generic

import (
	"context"
	"database/sql"
)

// =============================================================================
// ROW-SOURCE SURFACES - what the engine needs from the connection layer
// =============================================================================

// RowScanner is satisfied by both *sql.Row and *sql.Rows.
// Descriptor scan functions are written against this so the same mapper
// serves single-row and multi-row reads.
type RowScanner interface {
	Scan(dest ...any) error
}

// Querier is the statement-execution surface shared by *sql.DB and *sql.Tx.
// Store operations resolve a Querier per call: the ambient transaction if
// the context carries one, the raw handle otherwise.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// DESCRIPTOR - per-entity metadata consumed by the Store engine
// =============================================================================

// Descriptor carries everything the engine needs to persist one entity type.
//
// The column list is fixed and ordered: Bind must return values in exactly
// the Columns order, and Scan must read the id column followed by Columns.
// Absent timestamps map to SQL NULL on write and back to nil on read -
// never to a sentinel date.
type Descriptor[T any, ID comparable] struct {
	// Table is the backing table name.
	Table string

	// IDColumn is the generated-key column, "id" for every fleet table.
	IDColumn string

	// Columns lists every non-id column, in statement order.
	Columns []string

	// OrderBy is the natural ordering for full scans and pagination,
	// e.g. "plate_number ASC" or "recorded_at ASC, id ASC".
	OrderBy string

	// Scan materializes one row. The scanner yields the id column first,
	// then Columns in order.
	Scan func(RowScanner) (T, error)

	// Bind returns statement arguments matching Columns for the entity.
	Bind func(T) []any

	// ID extracts the identifier. ok is false when the entity has not
	// been persisted yet (insert path).
	ID func(T) (ID, bool)

	// WithID returns a copy of the entity carrying the generated id.
	WithID func(T, ID) T

	// FromKey converts a generated key (sqlite rowid) into the id type.
	FromKey func(int64) ID

	// Validate rejects entities with missing or malformed required fields.
	// Called before any statement is issued on write paths. Optional.
	Validate func(T) error
}

// validate runs the descriptor validation hook if present.
func (d Descriptor[T, ID]) validate(e T) error {
	if d.Validate == nil {
		return nil
	}
	return d.Validate(e)
}
