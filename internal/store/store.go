package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the per-entity mappers with the connection pool. The pool is
// the only process-wide database handle; it is passed in at construction and
// threaded into every call rather than read from package state.
type Store struct {
	pool *pgxpool.Pool

	Users              *Mapper[User]
	Classrooms         *Mapper[Classroom]
	Subjects           *Mapper[Subject]
	Exams              *Mapper[Exam]
	Results            *Mapper[Result]
	TeacherAssignments *Mapper[TeacherAssignment]
	StudentAssignments *Mapper[StudentAssignment]
}

// New creates a Store over the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:               pool,
		Users:              NewUsers(),
		Classrooms:         NewClassrooms(),
		Subjects:           NewSubjects(),
		Exams:              NewExams(),
		Results:            NewResults(),
		TeacherAssignments: NewTeacherAssignments(),
		StudentAssignments: NewStudentAssignments(),
	}
}

// DB returns the pooled handle for single-statement calls.
func (s *Store) DB() DBTX { return s.pool }

// WithTx runs fn inside a transaction, committing on nil return and rolling
// back otherwise. The transaction handle satisfies DBTX, so mapper calls
// inside fn join the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var _ DBTX = (*pgxpool.Pool)(nil)
var _ DBTX = (pgx.Tx)(nil)
