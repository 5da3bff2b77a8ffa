// Package store implements the relational data layer: one generic record
// mapper specialized per entity by its column whitelist, plus the predicate
// builder that translates criteria maps into parameterized SQL.
//
// Every operation takes an explicit DBTX so callers control whether a call
// runs on the shared pool or inside a transaction, and so tests can swap in
// a double without a live database.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations the mapper needs.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Fields is a mapping of column name to value for create and update calls.
type Fields map[string]any

// Mapper provides whitelist-validated CRUD over a single table. T is the
// entity struct; columns are matched to struct fields by `db` tags via
// pgx.RowToStructByNameLax.
type Mapper[T any] struct {
	table     string
	queryable columnSet // columns usable in criteria and ORDER BY
	writable  columnSet // columns accepted by Create
	updatable columnSet // columns accepted by Update (never includes id)
	required  []string  // columns that must be present in Create
}

// MapperSpec declares a table's column contract.
type MapperSpec struct {
	Table     string
	Queryable []string
	Writable  []string
	Updatable []string
	Required  []string
}

// NewMapper builds a mapper from a column specification.
func NewMapper[T any](spec MapperSpec) *Mapper[T] {
	return &Mapper[T]{
		table:     spec.Table,
		queryable: newColumnSet(spec.Queryable...),
		writable:  newColumnSet(spec.Writable...),
		updatable: newColumnSet(spec.Updatable...),
		required:  spec.Required,
	}
}

// Table returns the mapped table name.
func (m *Mapper[T]) Table() string { return m.table }

// Create inserts a record and returns it, including generated columns.
// Unknown field names fail with ErrInvalidColumn and missing required
// fields fail with ErrMissingField, both before any SQL is issued.
func (m *Mapper[T]) Create(ctx context.Context, db DBTX, fields Fields) (T, error) {
	var zero T

	if len(fields) == 0 {
		return zero, ErrEmptyUpdate
	}
	for col := range fields {
		if !m.writable.contains(col) {
			return zero, fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}
	for _, col := range m.required {
		if _, ok := fields[col]; !ok {
			return zero, fmt.Errorf("%w: %q", ErrMissingField, col)
		}
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[col]
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		m.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return zero, fmt.Errorf("insert %s: %w", m.table, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return zero, fmt.Errorf("insert %s: %w", m.table, err)
	}
	return rec, nil
}

// FindByID fetches a record by primary key. Absence is reported through the
// bool, never as an error.
func (m *Mapper[T]) FindByID(ctx context.Context, db DBTX, id int64) (T, bool, error) {
	return m.FindOne(ctx, db, Criteria{"id": id})
}

// FindOne returns the first record matching the criteria in the store's
// natural order.
func (m *Mapper[T]) FindOne(ctx context.Context, db DBTX, criteria Criteria) (T, bool, error) {
	var zero T

	where, args, err := buildWhere(criteria, m.queryable, 1)
	if err != nil {
		return zero, false, err
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", m.table, where)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return zero, false, fmt.Errorf("select %s: %w", m.table, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("select %s: %w", m.table, err)
	}
	return rec, true, nil
}

// FindAll returns every record matching the criteria, in the requested order.
// A nil criteria map selects the whole table; a slice-valued criterion
// matches any of its values. Passing nil order uses the store's natural order.
func (m *Mapper[T]) FindAll(ctx context.Context, db DBTX, criteria Criteria, order []Order) ([]T, error) {
	var (
		where string
		args  []any
		err   error
	)
	if len(criteria) > 0 {
		where, args, err = buildWhere(criteria, m.queryable, 1)
		if err != nil {
			return nil, err
		}
	}

	orderBy, err := buildOrderBy(order, m.queryable)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(m.table)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}

	rows, err := db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", m.table, err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", m.table, err)
	}
	return recs, nil
}

// Update applies the given fields to the record with the given id and
// reports whether a row matched. Identifier and creation-time columns are
// outside the updatable set and fail with ErrInvalidColumn.
func (m *Mapper[T]) Update(ctx context.Context, db DBTX, id int64, fields Fields) (bool, error) {
	if len(fields) == 0 {
		return false, ErrEmptyUpdate
	}
	for col := range fields {
		if !m.updatable.contains(col) {
			return false, fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, fields[col])
	}
	args = append(args, id)

	sql := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d",
		m.table, strings.Join(sets, ", "), len(cols)+1,
	)

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", m.table, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByID removes the record with the given id and reports whether a
// row was removed.
func (m *Mapper[T]) DeleteByID(ctx context.Context, db DBTX, id int64) (bool, error) {
	return m.Delete(ctx, db, Criteria{"id": id})
}

// Delete removes every record matching the criteria, with the same
// whitelist validation as the read paths.
func (m *Mapper[T]) Delete(ctx context.Context, db DBTX, criteria Criteria) (bool, error) {
	where, args, err := buildWhere(criteria, m.queryable, 1)
	if err != nil {
		return false, err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", m.table, where)
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", m.table, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ErrMissingField is returned by Create when a required field is absent.
var ErrMissingField = errors.New("missing required field")

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505). Concurrent upserts against the same natural
// key can surface this; callers should treat it as retryable.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
