package store

import "time"

// Exam belongs to a classroom; (classroom_id, name) is unique. Published is
// a one-way latch enforced by callers: this layer performs unconditional
// column updates and never flips it back on its own.
type Exam struct {
	ID          int64     `db:"id"`
	ClassroomID int64     `db:"classroom_id"`
	Name        string    `db:"name"`
	ExamDate    time.Time `db:"exam_date"`
	CreatedBy   int64     `db:"created_by"`
	Published   bool      `db:"published"`
	CreatedAt   time.Time `db:"created_at"`
}

// NewExams returns the mapper for the exams table.
func NewExams() *Mapper[Exam] {
	return NewMapper[Exam](MapperSpec{
		Table:     "exams",
		Queryable: []string{"id", "classroom_id", "name", "exam_date", "created_by", "published", "created_at"},
		Writable:  []string{"classroom_id", "name", "exam_date", "created_by", "published"},
		Updatable: []string{"name", "exam_date", "published"},
		Required:  []string{"classroom_id", "name", "exam_date", "created_by"},
	})
}
