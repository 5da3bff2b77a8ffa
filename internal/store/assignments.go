package store

// TeacherAssignment links a teacher to a classroom. The pair is unique;
// the caller, not the storage layer, is responsible for checking that
// teacher_id actually references a teacher.
type TeacherAssignment struct {
	ID        int64 `db:"id"`
	TeacherID int64 `db:"teacher_id"`
	ClassID   int64 `db:"class_id"`
}

// StudentAssignment links a student to a classroom, same contract as
// TeacherAssignment.
type StudentAssignment struct {
	ID        int64 `db:"id"`
	StudentID int64 `db:"student_id"`
	ClassID   int64 `db:"class_id"`
}

// NewTeacherAssignments returns the mapper for the teacher_class table.
// Assignments are immutable links: there is no updatable column, they are
// only created and deleted.
func NewTeacherAssignments() *Mapper[TeacherAssignment] {
	return NewMapper[TeacherAssignment](MapperSpec{
		Table:     "teacher_class",
		Queryable: []string{"id", "teacher_id", "class_id"},
		Writable:  []string{"teacher_id", "class_id"},
		Required:  []string{"teacher_id", "class_id"},
	})
}

// NewStudentAssignments returns the mapper for the student_class table.
func NewStudentAssignments() *Mapper[StudentAssignment] {
	return NewMapper[StudentAssignment](MapperSpec{
		Table:     "student_class",
		Queryable: []string{"id", "student_id", "class_id"},
		Writable:  []string{"student_id", "class_id"},
		Required:  []string{"student_id", "class_id"},
	})
}
