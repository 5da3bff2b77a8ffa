package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestBuildWhere_Scalars(t *testing.T) {
	allowed := newColumnSet("a", "b")

	where, args, err := buildWhere(Criteria{"b": 1, "a": 2}, allowed, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	if where != "a = $1 AND b = $2" {
		t.Errorf("where = %q", where)
	}
	if !reflect.DeepEqual(args, []any{2, 1}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhere_Deterministic(t *testing.T) {
	allowed := newColumnSet("x", "y", "z")
	criteria := Criteria{"z": 1, "x": 2, "y": 3}

	first, _, err := buildWhere(criteria, allowed, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		next, _, err := buildWhere(criteria, allowed, 1)
		if err != nil {
			t.Fatalf("buildWhere() error = %v", err)
		}
		if next != first {
			t.Fatalf("non-deterministic SQL: %q vs %q", next, first)
		}
	}
}

func TestBuildWhere_InvalidColumn(t *testing.T) {
	allowed := newColumnSet("a")

	_, _, err := buildWhere(Criteria{"a": 1, "nope": 2}, allowed, 1)
	if !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("error = %v, want ErrInvalidColumn", err)
	}
}

func TestBuildWhere_EmptyCriteria(t *testing.T) {
	_, _, err := buildWhere(nil, newColumnSet("a"), 1)
	if !errors.Is(err, ErrEmptyCriteria) {
		t.Fatalf("error = %v, want ErrEmptyCriteria", err)
	}
}

func TestBuildWhere_SliceBecomesIN(t *testing.T) {
	allowed := newColumnSet("id", "role")

	where, args, err := buildWhere(Criteria{"id": []int64{7, 8, 9}, "role": "student"}, allowed, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	if where != "id IN ($1, $2, $3) AND role = $4" {
		t.Errorf("where = %q", where)
	}
	if !reflect.DeepEqual(args, []any{int64(7), int64(8), int64(9), "student"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhere_EmptySliceMatchesNothing(t *testing.T) {
	allowed := newColumnSet("id")

	where, args, err := buildWhere(Criteria{"id": []int64{}}, allowed, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	if where != "FALSE" {
		t.Errorf("where = %q, want FALSE", where)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildWhere_StartArg(t *testing.T) {
	allowed := newColumnSet("a")

	where, _, err := buildWhere(Criteria{"a": 1}, allowed, 5)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	if where != "a = $5" {
		t.Errorf("where = %q", where)
	}
}

func TestBuildWhere_BytesAreScalar(t *testing.T) {
	allowed := newColumnSet("blob")

	where, args, err := buildWhere(Criteria{"blob": []byte{1, 2}}, allowed, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	if where != "blob = $1" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 1 {
		t.Errorf("args = %v, want single value", args)
	}
}

func TestBuildOrderBy(t *testing.T) {
	allowed := newColumnSet("name", "created_at")

	tests := []struct {
		name    string
		order   []Order
		want    string
		wantErr error
	}{
		{"empty", nil, "", nil},
		{"single asc", []Order{{"name", "asc"}}, "name ASC", nil},
		{"mixed case dir", []Order{{"name", "Desc"}}, "name DESC", nil},
		{"multiple terms", []Order{{"created_at", "DESC"}, {"name", "ASC"}}, "created_at DESC, name ASC", nil},
		{"bad column", []Order{{"secret", "ASC"}}, "", ErrInvalidOrder},
		{"bad direction", []Order{{"name", "sideways"}}, "", ErrInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildOrderBy(tt.order, allowed)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildOrderBy() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("orderBy = %q, want %q", got, tt.want)
			}
		})
	}
}
