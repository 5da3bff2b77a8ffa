package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordingDB captures issued SQL without executing anything. Query always
// fails with errQueryStop so callers return before touching a nil Rows; the
// interesting assertions are about what was (or was not) sent.
type recordingDB struct {
	execSQL  []string
	execArgs [][]any
	execTag  pgconn.CommandTag
	execErr  error

	querySQL  []string
	queryArgs [][]any
}

var errQueryStop = errors.New("query stopped by test")

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execSQL = append(d.execSQL, sql)
	d.execArgs = append(d.execArgs, args)
	return d.execTag, d.execErr
}

func (d *recordingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.querySQL = append(d.querySQL, sql)
	d.queryArgs = append(d.queryArgs, args)
	return nil, errQueryStop
}

func (d *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("QueryRow not used by mapper")
}

func (d *recordingDB) calls() int {
	return len(d.execSQL) + len(d.querySQL)
}

var _ DBTX = (*recordingDB)(nil)

func TestCreate_RejectsUnknownColumnBeforeSQL(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.Create(context.Background(), db, Fields{
		"username": "alice",
		"is_admin": true,
	})
	if !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("error = %v, want ErrInvalidColumn", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestCreate_RejectsMissingRequiredBeforeSQL(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.Create(context.Background(), db, Fields{
		"username": "alice",
	})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("error = %v, want ErrMissingField", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestCreate_RejectsEmptyFields(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.Create(context.Background(), db, nil)
	if !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("error = %v, want ErrEmptyUpdate", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestCreate_SQLShape(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.Create(context.Background(), db, Fields{
		"username":      "alice",
		"password_hash": "h",
		"role":          RoleStudent,
		"name":          "Alice",
	})
	if !errors.Is(err, errQueryStop) {
		t.Fatalf("error = %v, want query stop", err)
	}
	if len(db.querySQL) != 1 {
		t.Fatalf("queries = %d, want 1", len(db.querySQL))
	}

	// Columns in lexical order, placeholders in step.
	want := "INSERT INTO users (name, password_hash, role, username) VALUES ($1, $2, $3, $4) RETURNING *"
	if db.querySQL[0] != want {
		t.Errorf("sql = %q, want %q", db.querySQL[0], want)
	}
	wantArgs := []any{"Alice", "h", RoleStudent, "alice"}
	if !reflect.DeepEqual(db.queryArgs[0], wantArgs) {
		t.Errorf("args = %v, want %v", db.queryArgs[0], wantArgs)
	}
}

func TestFindOne_RejectsUnknownColumnBeforeSQL(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, _, err := users.FindOne(context.Background(), db, Criteria{"passwd": "x"})
	if !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("error = %v, want ErrInvalidColumn", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestFindAll_SQLShape(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.FindAll(context.Background(), db,
		Criteria{"id": []int64{1, 2}},
		[]Order{{Column: "created_at", Dir: "desc"}})
	if !errors.Is(err, errQueryStop) {
		t.Fatalf("error = %v, want query stop", err)
	}

	want := "SELECT * FROM users WHERE id IN ($1, $2) ORDER BY created_at DESC"
	if db.querySQL[0] != want {
		t.Errorf("sql = %q, want %q", db.querySQL[0], want)
	}
}

func TestFindAll_RejectsInvalidOrderBeforeSQL(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.FindAll(context.Background(), db, nil, []Order{{Column: "id", Dir: "random"}})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("error = %v, want ErrInvalidOrder", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestUpdate_RejectsNonUpdatableColumn(t *testing.T) {
	db := &recordingDB{}
	exams := NewExams()

	// classroom_id is writable but deliberately not updatable.
	_, err := exams.Update(context.Background(), db, 1, Fields{"classroom_id": 2})
	if !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("error = %v, want ErrInvalidColumn", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestUpdate_RejectsEmptyFields(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.Update(context.Background(), db, 1, Fields{})
	if !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("error = %v, want ErrEmptyUpdate", err)
	}
}

func TestUpdate_ReportsRowMatch(t *testing.T) {
	users := NewUsers()
	fields := Fields{"name": "Alice", "active": false}

	t.Run("matched", func(t *testing.T) {
		db := &recordingDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
		matched, err := users.Update(context.Background(), db, 7, fields)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !matched {
			t.Error("matched = false, want true")
		}

		want := "UPDATE users SET active = $1, name = $2 WHERE id = $3"
		if db.execSQL[0] != want {
			t.Errorf("sql = %q, want %q", db.execSQL[0], want)
		}
		if !reflect.DeepEqual(db.execArgs[0], []any{false, "Alice", int64(7)}) {
			t.Errorf("args = %v", db.execArgs[0])
		}
	})

	t.Run("no row", func(t *testing.T) {
		db := &recordingDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
		matched, err := users.Update(context.Background(), db, 7, fields)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if matched {
			t.Error("matched = true, want false")
		}
	})
}

func TestDelete_RejectsEmptyCriteria(t *testing.T) {
	db := &recordingDB{}
	users := NewUsers()

	_, err := users.Delete(context.Background(), db, nil)
	if !errors.Is(err, ErrEmptyCriteria) {
		t.Fatalf("error = %v, want ErrEmptyCriteria", err)
	}
	if db.calls() != 0 {
		t.Errorf("issued %d statements, want none", db.calls())
	}
}

func TestDeleteByID_SQLShape(t *testing.T) {
	db := &recordingDB{execTag: pgconn.NewCommandTag("DELETE 1")}
	subjects := NewSubjects()

	removed, err := subjects.DeleteByID(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if !removed {
		t.Error("removed = false, want true")
	}
	want := "DELETE FROM subjects WHERE id = $1"
	if db.execSQL[0] != want {
		t.Errorf("sql = %q, want %q", db.execSQL[0], want)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleTeacher, RoleStudent} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	for _, role := range []string{"", "root", "Teacher"} {
		if ValidRole(role) {
			t.Errorf("ValidRole(%q) = true", role)
		}
	}
}
