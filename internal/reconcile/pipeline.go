// Package reconcile implements the bulk marks upload: it ingests a CSV
// stream for one exam, resolves each row's natural keys against the
// persisted catalog, and idempotently upserts Result rows.
//
// The batch is resolved against three one-shot snapshots (class subjects,
// class students, existing exam results) and applied in a single
// transaction, so a mid-batch failure never leaves a partially applied
// upload. Re-running the same file yields the same rows and the same count.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"gradebook/internal/store"
)

var (
	// ErrExamMismatch means the exam does not exist or does not belong to
	// the classroom named in the request.
	ErrExamMismatch = errors.New("exam does not belong to class")

	// ErrExamClosed means the exam is already published and no longer
	// accepts mark uploads.
	ErrExamClosed = errors.New("exam already published")
)

// MissingColumnsError reports which required header columns the upload
// lacks. It is returned before any row is processed.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing columns: " + strings.Join(e.Columns, ", ")
}

// ResultUpsert is one pending write against the results table. ResultID is
// zero for an insert and the existing row's id for an overwrite.
type ResultUpsert struct {
	ResultID   int64
	ExamID     int64
	StudentID  int64
	SubjectID  int64
	Marks      float64
	UploadedBy int64
}

// Source is the catalog the pipeline reconciles against. The store-backed
// implementation lives in this package; tests supply an in-memory fake.
type Source interface {
	// Exam fetches an exam by id; absence is the bool, not an error.
	Exam(ctx context.Context, examID int64) (store.Exam, bool, error)
	// ClassSubjects returns the subject catalog of one classroom.
	ClassSubjects(ctx context.Context, classID int64) ([]store.Subject, error)
	// ClassStudents returns the students assigned to one classroom,
	// already filtered to role student.
	ClassStudents(ctx context.Context, classID int64) ([]store.User, error)
	// ExamResults returns every existing result row for one exam.
	ExamResults(ctx context.Context, examID int64) ([]store.Result, error)
	// ApplyResults commits the batch atomically: all writes or none.
	ApplyResults(ctx context.Context, upserts []ResultUpsert) error
}

// Pipeline reconciles marks uploads against a Source.
type Pipeline struct {
	src Source
}

// New creates a Pipeline over the given source.
func New(src Source) *Pipeline {
	return &Pipeline{src: src}
}

// Run processes one upload against the given classroom and exam, attributing
// writes to actorID. It returns the number of rows successfully upserted.
//
// Batch-level failures (exam mismatch, closed exam, missing header columns,
// storage errors) abort the run with an error. Row-level problems — blank
// fields, unparsable marks, unknown students or subjects, students outside
// the class — skip that row and nothing else.
func (p *Pipeline) Run(ctx context.Context, input io.Reader, classID, examID, actorID int64) (int, error) {
	log := slog.With(
		"batch_id", uuid.NewString(),
		"class_id", classID,
		"exam_id", examID,
		"actor_id", actorID,
	)

	exam, ok, err := p.src.Exam(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("load exam: %w", err)
	}
	if !ok || exam.ClassroomID != classID {
		return 0, ErrExamMismatch
	}
	if exam.Published {
		return 0, ErrExamClosed
	}

	rows, err := readRows(input)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &MissingColumnsError{Columns: []string{ColStudentUsername, ColSubjectCode, ColMarks}}
	}

	headerIdx := makeHeaderIndex(rows[0])
	if missing := requireColumns(headerIdx, ColStudentUsername, ColSubjectCode, ColMarks); len(missing) > 0 {
		return 0, &MissingColumnsError{Columns: missing}
	}

	subjectsByCode, err := p.loadSubjects(ctx, classID)
	if err != nil {
		return 0, err
	}
	studentsByUsername, err := p.loadStudents(ctx, classID)
	if err != nil {
		return 0, err
	}
	existing, err := p.loadResults(ctx, examID)
	if err != nil {
		return 0, err
	}

	type key struct{ studentID, subjectID int64 }
	pending := make(map[key]*ResultUpsert)
	var order []key
	upserts := 0

	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}

		username := cellAt(row, headerIdx, ColStudentUsername)
		subjectCode := cellAt(row, headerIdx, ColSubjectCode)
		marksRaw := cellAt(row, headerIdx, ColMarks)

		if username == "" || subjectCode == "" || marksRaw == "" {
			log.Debug("row skipped: blank required field", "line", i+2)
			continue
		}
		marks, ok := parseMarks(marksRaw)
		if !ok {
			log.Debug("row skipped: unparsable marks", "line", i+2, "marks", marksRaw)
			continue
		}
		student, ok := studentsByUsername[username]
		if !ok {
			log.Debug("row skipped: student not in class", "line", i+2, "username", username)
			continue
		}
		subject, ok := subjectsByCode[subjectCode]
		if !ok {
			log.Debug("row skipped: unknown subject code", "line", i+2, "subject", subjectCode)
			continue
		}

		k := key{student.ID, subject.ID}
		up, queued := pending[k]
		if !queued {
			up = &ResultUpsert{
				ExamID:    examID,
				StudentID: student.ID,
				SubjectID: subject.ID,
			}
			if prev, found := existing[[2]int64{student.ID, subject.ID}]; found {
				up.ResultID = prev
			}
			pending[k] = up
			order = append(order, k)
		}
		// Last row wins when a file repeats a (student, subject) pair.
		up.Marks = marks
		up.UploadedBy = actorID
		upserts++
	}

	batch := make([]ResultUpsert, 0, len(order))
	for _, k := range order {
		batch = append(batch, *pending[k])
	}

	if err := p.src.ApplyResults(ctx, batch); err != nil {
		return 0, fmt.Errorf("apply results: %w", err)
	}

	log.Info("marks reconciled",
		"rows", len(rows)-1,
		"upserts", upserts,
		"distinct_results", len(batch),
	)
	return upserts, nil
}

func (p *Pipeline) loadSubjects(ctx context.Context, classID int64) (map[string]store.Subject, error) {
	subjects, err := p.src.ClassSubjects(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	byCode := make(map[string]store.Subject, len(subjects))
	for _, s := range subjects {
		byCode[s.Code] = s
	}
	return byCode, nil
}

func (p *Pipeline) loadStudents(ctx context.Context, classID int64) (map[string]store.User, error) {
	students, err := p.src.ClassStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	byUsername := make(map[string]store.User, len(students))
	for _, u := range students {
		byUsername[u.Username] = u
	}
	return byUsername, nil
}

// loadResults indexes existing result ids by (student, subject) so the row
// loop can route each valid row to an update or an insert without touching
// the store again.
func (p *Pipeline) loadResults(ctx context.Context, examID int64) (map[[2]int64]int64, error) {
	results, err := p.src.ExamResults(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	byKey := make(map[[2]int64]int64, len(results))
	for _, r := range results {
		byKey[[2]int64{r.StudentID, r.SubjectID}] = r.ID
	}
	return byKey, nil
}
