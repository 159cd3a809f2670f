/*
store.go - The generic entity store engine

PURPOSE:
  One CRUD/pagination/count engine for every persisted entity. A Store is a
  database handle plus a Descriptor; the descriptor carries the per-entity
  differences (table, columns, mappers, validation, natural order) and the
  engine guarantees identical semantics across all of them.

CONTRACT:
  FindByID:  empty result for the zero id or a missing row - never an error
  FindAll:   full scan in the descriptor's natural order
  FindPage:  offset = page*size; invalid page/size yield an empty slice
  Save:      no id = insert (generated key retrieved atomically),
             id present = routed to Update
  Update:    zero rows affected = rollback + failure (row is gone)
  Delete:    true iff exactly one row removed; FK violations classified
             as "in use", not generic failures
  Count:     total rows, ignoring pagination

TRANSACTION SCOPING:
  Every mutating operation runs inside a scoped transaction, even
  single-statement writes: insert + generated-key retrieval must be observed
  atomically. When the context already carries a transaction (a Writer unit
  of work), the operation joins it.

READ LENIENCY:
  Read paths never fail on absence. A nil id, an unknown id, or an
  out-of-range page all produce empty results. Write paths are strict and
  validated before any statement is issued.

SEE ALSO:
  - types.go: Descriptor definition
  - tx.go: Writer and transaction scoping
  - errors.go: Failure taxonomy
*/
package generic

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// STORE - generic repository over one entity type
// =============================================================================

// Store persists entities of type T identified by ID.
type Store[T any, ID comparable] struct {
	db     *sql.DB
	writer *Writer
	desc   Descriptor[T, ID]

	selectSQL string
	insertSQL string
	updateSQL string
}

// NewStore builds a store for the descriptor. Statement text is assembled
// once, from the fixed column list - values always travel as arguments.
func NewStore[T any, ID comparable](db *sql.DB, desc Descriptor[T, ID]) *Store[T, ID] {
	cols := strings.Join(desc.Columns, ", ")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(desc.Columns)), ", ")

	assignments := make([]string, len(desc.Columns))
	for i, c := range desc.Columns {
		assignments[i] = c + " = ?"
	}

	return &Store[T, ID]{
		db:     db,
		writer: NewWriter(db),
		desc:   desc,
		selectSQL: fmt.Sprintf("SELECT %s, %s FROM %s",
			desc.IDColumn, cols, desc.Table),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			desc.Table, cols, placeholders),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			desc.Table, strings.Join(assignments, ", "), desc.IDColumn),
	}
}

// Descriptor exposes the entity metadata this store was built from.
func (s *Store[T, ID]) Descriptor() Descriptor[T, ID] { return s.desc }

// =============================================================================
// READS
// =============================================================================

// FindByID returns the entity, or nil when the id is the zero id or no row
// matches. Absence is not an error on read paths.
func (s *Store[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	var zero ID
	if id == zero {
		return nil, nil
	}

	q := QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx, s.selectSQL+" WHERE "+s.desc.IDColumn+" = ?", id)

	e, err := s.desc.Scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.desc.Table, err)
	}
	return &e, nil
}

// FindAll returns every entity in the descriptor's natural order.
func (s *Store[T, ID]) FindAll(ctx context.Context) ([]T, error) {
	return s.query(ctx, s.selectSQL+" ORDER BY "+s.desc.OrderBy)
}

// FindPage returns one page of entities. page >= 0 and size > 0; anything
// else yields an empty slice - a deliberately lenient read policy.
func (s *Store[T, ID]) FindPage(ctx context.Context, page, size int) ([]T, error) {
	if page < 0 || size <= 0 {
		return []T{}, nil
	}
	return s.query(ctx,
		s.selectSQL+" ORDER BY "+s.desc.OrderBy+" LIMIT ? OFFSET ?",
		size, page*size)
}

// Count returns the total entity count.
func (s *Store[T, ID]) Count(ctx context.Context) (int64, error) {
	q := QuerierFrom(ctx, s.db)
	var n int64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.desc.Table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.desc.Table, err)
	}
	return n, nil
}

// query runs a pre-assembled select and materializes every row.
func (s *Store[T, ID]) query(ctx context.Context, stmt string, args ...any) ([]T, error) {
	q := QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.desc.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		e, err := s.desc.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.desc.Table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// WRITES - always inside a scoped transaction
// =============================================================================

// Save persists the entity. Without an id it inserts and returns a copy
// carrying the generated id; with an id it routes to Update. On failure the
// original entity is returned unchanged alongside the classified error.
func (s *Store[T, ID]) Save(ctx context.Context, e T) (T, error) {
	if _, ok := s.desc.ID(e); ok {
		return s.Update(ctx, e)
	}

	if err := s.desc.validate(e); err != nil {
		return e, err
	}

	saved := e
	err := s.writer.Run(ctx, func(ctx context.Context) error {
		q := QuerierFrom(ctx, s.db)
		res, err := q.ExecContext(ctx, s.insertSQL, s.desc.Bind(e)...)
		if err != nil {
			return Classify(s.desc.Table, err)
		}

		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return fmt.Errorf("%w: insert into %s affected no rows",
				ErrTransactionFailed, s.desc.Table)
		}

		key, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: %s: no generated id",
				ErrTransactionFailed, s.desc.Table)
		}

		saved = s.desc.WithID(e, s.desc.FromKey(key))
		return nil
	})
	if err != nil {
		return e, err
	}
	return saved, nil
}

// Update rewrites the row identified by the entity's id. A missing id is a
// validation failure; zero affected rows means the row no longer exists and
// the transaction rolls back.
func (s *Store[T, ID]) Update(ctx context.Context, e T) (T, error) {
	id, ok := s.desc.ID(e)
	if !ok {
		return e, &ValidationError{Field: s.desc.IDColumn, Message: "missing identifier"}
	}
	if err := s.desc.validate(e); err != nil {
		return e, err
	}

	err := s.writer.Run(ctx, func(ctx context.Context) error {
		q := QuerierFrom(ctx, s.db)
		args := append(s.desc.Bind(e), id)
		res, err := q.ExecContext(ctx, s.updateSQL, args...)
		if err != nil {
			return Classify(s.desc.Table, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: update %s: %v", ErrTransactionFailed, s.desc.Table, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: update %s: no such row",
				ErrTransactionFailed, s.desc.Table)
		}
		return nil
	})
	if err != nil {
		return e, err
	}
	return e, nil
}

// Delete removes the row. Returns true iff exactly one row was removed.
// A foreign-key rejection surfaces as the in-use classification so callers
// can distinguish "still referenced" from a generic failure.
func (s *Store[T, ID]) Delete(ctx context.Context, id ID) (bool, error) {
	var zero ID
	if id == zero {
		return false, nil
	}

	removed := false
	err := s.writer.Run(ctx, func(ctx context.Context) error {
		q := QuerierFrom(ctx, s.db)
		res, err := q.ExecContext(ctx,
			"DELETE FROM "+s.desc.Table+" WHERE "+s.desc.IDColumn+" = ?", id)
		if err != nil {
			return Classify(s.desc.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete %s: %v", ErrTransactionFailed, s.desc.Table, err)
		}
		removed = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
