package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gradebook/internal/store"
)

// fakeSource is an in-memory catalog. ApplyResults mutates results the way
// the store-backed source would, so re-running an upload against the fake
// observes the rows the previous run wrote.
type fakeSource struct {
	exam     store.Exam
	examOK   bool
	subjects []store.Subject
	students []store.User
	results  []store.Result

	applied [][]ResultUpsert
	nextID  int64
}

func (f *fakeSource) Exam(context.Context, int64) (store.Exam, bool, error) {
	return f.exam, f.examOK, nil
}

func (f *fakeSource) ClassSubjects(context.Context, int64) ([]store.Subject, error) {
	return f.subjects, nil
}

func (f *fakeSource) ClassStudents(context.Context, int64) ([]store.User, error) {
	return f.students, nil
}

func (f *fakeSource) ExamResults(context.Context, int64) ([]store.Result, error) {
	return f.results, nil
}

func (f *fakeSource) ApplyResults(_ context.Context, upserts []ResultUpsert) error {
	f.applied = append(f.applied, append([]ResultUpsert(nil), upserts...))

	for _, up := range upserts {
		if up.ResultID != 0 {
			for i := range f.results {
				if f.results[i].ID == up.ResultID {
					f.results[i].Marks = up.Marks
					f.results[i].UploadedBy = up.UploadedBy
				}
			}
			continue
		}
		f.nextID++
		f.results = append(f.results, store.Result{
			ID:         f.nextID,
			ExamID:     up.ExamID,
			StudentID:  up.StudentID,
			SubjectID:  up.SubjectID,
			Marks:      up.Marks,
			UploadedBy: up.UploadedBy,
		})
	}
	return nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		exam:   store.Exam{ID: 10, ClassroomID: 1, Name: "Midterm"},
		examOK: true,
		subjects: []store.Subject{
			{ID: 100, ClassroomID: 1, Code: "MATH", MaxMarks: 100},
			{ID: 101, ClassroomID: 1, Code: "PHY", MaxMarks: 100},
		},
		students: []store.User{
			{ID: 200, Username: "alice", Role: store.RoleStudent},
			{ID: 201, Username: "bob", Role: store.RoleStudent},
		},
		nextID: 1000,
	}
}

func run(t *testing.T, src *fakeSource, csv string) (int, error) {
	t.Helper()
	return New(src).Run(context.Background(), strings.NewReader(csv), 1, 10, 5)
}

func TestRun_ExamMissing(t *testing.T) {
	src := newFakeSource()
	src.examOK = false

	_, err := run(t, src, "StudentUsername,SubjectCode,Marks\n")
	if !errors.Is(err, ErrExamMismatch) {
		t.Fatalf("error = %v, want ErrExamMismatch", err)
	}
}

func TestRun_ExamWrongClass(t *testing.T) {
	src := newFakeSource()
	src.exam.ClassroomID = 2

	_, err := run(t, src, "StudentUsername,SubjectCode,Marks\n")
	if !errors.Is(err, ErrExamMismatch) {
		t.Fatalf("error = %v, want ErrExamMismatch", err)
	}
}

func TestRun_ExamClosed(t *testing.T) {
	src := newFakeSource()
	src.exam.Published = true

	_, err := run(t, src, "StudentUsername,SubjectCode,Marks\n")
	if !errors.Is(err, ErrExamClosed) {
		t.Fatalf("error = %v, want ErrExamClosed", err)
	}
}

func TestRun_MissingColumns(t *testing.T) {
	src := newFakeSource()

	_, err := run(t, src, "StudentUsername,Score\nalice,90\n")
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingColumnsError", err)
	}
	if len(missing.Columns) != 2 || missing.Columns[0] != ColSubjectCode || missing.Columns[1] != ColMarks {
		t.Errorf("missing = %v, want [%s %s]", missing.Columns, ColSubjectCode, ColMarks)
	}
}

func TestRun_EmptyUpload(t *testing.T) {
	src := newFakeSource()

	_, err := run(t, src, "")
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingColumnsError", err)
	}
	if len(missing.Columns) != 3 {
		t.Errorf("missing = %v, want all three columns", missing.Columns)
	}
}

func TestRun_SkipsBadRowsAndCountsGoodOnes(t *testing.T) {
	src := newFakeSource()

	csv := strings.Join([]string{
		"StudentUsername,SubjectCode,Marks",
		"alice,MATH,90",    // valid
		"bob,PHY,",         // blank marks: skipped
		"charlie,MATH,80",  // unknown student: skipped
		"alice,CHEM,70",    // unknown subject: skipped
		"bob,MATH,ninety",  // unparsable marks: skipped
		",,",               // empty row: skipped
		"bob,PHY,75",       // valid
	}, "\n")

	count, err := run(t, src, csv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(src.results) != 2 {
		t.Errorf("results = %d rows, want 2", len(src.results))
	}
}

func TestRun_HeaderCaseInsensitive(t *testing.T) {
	src := newFakeSource()

	count, err := run(t, src, "studentusername,SUBJECTCODE,marks\nalice,MATH,90\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestRun_LastRowWins(t *testing.T) {
	src := newFakeSource()

	csv := strings.Join([]string{
		"StudentUsername,SubjectCode,Marks",
		"alice,MATH,90",
		"alice,MATH,95",
	}, "\n")

	count, err := run(t, src, csv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Both rows are valid and counted, but they collapse to one write.
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(src.results) != 1 {
		t.Fatalf("results = %d rows, want 1", len(src.results))
	}
	if src.results[0].Marks != 95 {
		t.Errorf("marks = %v, want 95 (last row)", src.results[0].Marks)
	}
}

func TestRun_UpdatesExistingResult(t *testing.T) {
	src := newFakeSource()
	src.results = []store.Result{
		{ID: 7, ExamID: 10, StudentID: 200, SubjectID: 100, Marks: 50, UploadedBy: 1},
	}

	count, err := run(t, src, "StudentUsername,SubjectCode,Marks\nalice,MATH,88\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(src.results) != 1 {
		t.Fatalf("results = %d rows, want the existing row only", len(src.results))
	}
	if src.results[0].ID != 7 || src.results[0].Marks != 88 || src.results[0].UploadedBy != 5 {
		t.Errorf("result = %+v, want row 7 overwritten by actor 5", src.results[0])
	}

	if len(src.applied) != 1 || src.applied[0][0].ResultID != 7 {
		t.Errorf("applied = %+v, want update of result 7", src.applied)
	}
}

func TestRun_Idempotent(t *testing.T) {
	src := newFakeSource()
	csv := strings.Join([]string{
		"StudentUsername,SubjectCode,Marks",
		"alice,MATH,90",
		"bob,PHY,75",
	}, "\n")

	first, err := run(t, src, csv)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := run(t, src, csv)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first != second {
		t.Errorf("counts differ: %d vs %d", first, second)
	}
	if len(src.results) != 2 {
		t.Errorf("results = %d rows, want 2 after re-run", len(src.results))
	}
	// The second run must route every row to an update.
	for _, up := range src.applied[1] {
		if up.ResultID == 0 {
			t.Errorf("second run inserted %+v, want update", up)
		}
	}
}
