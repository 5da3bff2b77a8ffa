package store

// predicate.go builds parameterized SQL fragments from loosely-typed
// criteria maps. Every column reference is checked against the owning
// entity's whitelist before any SQL is assembled; nothing caller-supplied
// is ever spliced into a query string except validated column names.

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Criteria is a mapping of column name to value. A scalar value produces an
// equality predicate; a slice value produces a set-membership (IN) predicate.
// All predicates are combined with AND.
type Criteria map[string]any

// Order is a single ORDER BY term. Dir accepts "asc" or "desc" in any case.
type Order struct {
	Column string
	Dir    string
}

var (
	// ErrInvalidColumn is returned when a criteria or update key is not in
	// the entity's column whitelist. This is always a programming error in
	// the caller, never a pass-through of user input.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrInvalidOrder is returned for an order term with a non-whitelisted
	// column or a direction other than asc/desc.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrEmptyCriteria is returned when an operation that requires a filter
	// is called with no criteria at all.
	ErrEmptyCriteria = errors.New("empty criteria")

	// ErrEmptyUpdate is returned when Update is called with no fields.
	ErrEmptyUpdate = errors.New("empty update")
)

// columnSet is a fixed whitelist of column names for one entity.
type columnSet map[string]struct{}

func newColumnSet(cols ...string) columnSet {
	s := make(columnSet, len(cols))
	for _, c := range cols {
		s[c] = struct{}{}
	}
	return s
}

func (s columnSet) contains(col string) bool {
	_, ok := s[col]
	return ok
}

// sortedKeys returns criteria keys in lexical order so that generated SQL is
// deterministic for a given criteria map.
func sortedKeys(c Criteria) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhere renders criteria as an AND-joined predicate starting at
// placeholder $startArg. It validates every key against allowed before
// touching any value. An empty slice value yields a FALSE predicate
// (matches nothing) rather than invalid SQL.
func buildWhere(criteria Criteria, allowed columnSet, startArg int) (string, []any, error) {
	if len(criteria) == 0 {
		return "", nil, ErrEmptyCriteria
	}

	for _, col := range sortedKeys(criteria) {
		if !allowed.contains(col) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}

	var (
		conds []string
		args  []any
		n     = startArg
	)

	for _, col := range sortedKeys(criteria) {
		val := criteria[col]

		if vals, ok := sliceValues(val); ok {
			if len(vals) == 0 {
				conds = append(conds, "FALSE")
				continue
			}
			placeholders := make([]string, len(vals))
			for i, v := range vals {
				placeholders[i] = fmt.Sprintf("$%d", n)
				args = append(args, v)
				n++
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
			continue
		}

		conds = append(conds, fmt.Sprintf("%s = $%d", col, n))
		args = append(args, val)
		n++
	}

	return strings.Join(conds, " AND "), args, nil
}

// buildOrderBy renders an ORDER BY clause body. Columns must be whitelisted
// and directions must normalize to ASC or DESC; anything else fails before
// a query is issued.
func buildOrderBy(order []Order, allowed columnSet) (string, error) {
	if len(order) == 0 {
		return "", nil
	}

	terms := make([]string, 0, len(order))
	for _, o := range order {
		if !allowed.contains(o.Column) {
			return "", fmt.Errorf("%w: column %q", ErrInvalidOrder, o.Column)
		}
		dir := strings.ToUpper(strings.TrimSpace(o.Dir))
		if dir != "ASC" && dir != "DESC" {
			return "", fmt.Errorf("%w: direction %q", ErrInvalidOrder, o.Dir)
		}
		terms = append(terms, o.Column+" "+dir)
	}
	return strings.Join(terms, ", "), nil
}

// sliceValues reports whether v is a sequence of scalars and, if so, returns
// its elements. []byte is treated as a scalar (it scans as a single value).
func sliceValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
