package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Result is one student's marks for one subject in one exam. The
// (exam_id, student_id, subject_id) triple is the natural key; the database
// enforces its uniqueness, which is what makes the reconciliation upsert
// idempotent.
type Result struct {
	ID         int64     `db:"id"`
	ExamID     int64     `db:"exam_id"`
	StudentID  int64     `db:"student_id"`
	SubjectID  int64     `db:"subject_id"`
	Marks      float64   `db:"marks"`
	Grade      *string   `db:"grade"`
	UploadedBy int64     `db:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at"`
}

// NewResults returns the mapper for the results table. Foreign keys are
// intentionally absent from the updatable set: a result is re-pointed by
// delete and re-create, never by mutating its natural key.
func NewResults() *Mapper[Result] {
	return NewMapper[Result](MapperSpec{
		Table:     "results",
		Queryable: []string{"id", "exam_id", "student_id", "subject_id", "marks", "grade", "uploaded_by", "created_at"},
		Writable:  []string{"exam_id", "student_id", "subject_id", "marks", "grade", "uploaded_by"},
		Updatable: []string{"marks", "grade", "uploaded_by"},
		Required:  []string{"exam_id", "student_id", "subject_id", "marks", "uploaded_by"},
	})
}

// ResultLine is one row of a student's report for an exam, joined with the
// subject catalog for display.
type ResultLine struct {
	SubjectName string  `db:"subject_name"`
	SubjectCode string  `db:"subject_code"`
	Marks       float64 `db:"marks"`
	MaxMarks    int     `db:"max_marks"`
}

// StudentExamResults returns a student's per-subject lines for one exam.
func (s *Store) StudentExamResults(ctx context.Context, db DBTX, examID, studentID int64) ([]ResultLine, error) {
	const q = `
		SELECT sub.name AS subject_name, sub.code AS subject_code, r.marks, sub.max_marks
		FROM results r
		JOIN subjects sub ON sub.id = r.subject_id
		WHERE r.exam_id = $1 AND r.student_id = $2
		ORDER BY sub.code`

	rows, err := db.Query(ctx, q, examID, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByNameLax[ResultLine])
}
