package store

// Subject belongs to a classroom; its code is unique only within that
// classroom, so natural-key lookups always pair classroom_id with code.
type Subject struct {
	ID          int64  `db:"id"`
	ClassroomID int64  `db:"classroom_id"`
	Name        string `db:"name"`
	Code        string `db:"code"`
	MaxMarks    int    `db:"max_marks"`
}

// NewSubjects returns the mapper for the subjects table.
func NewSubjects() *Mapper[Subject] {
	return NewMapper[Subject](MapperSpec{
		Table:     "subjects",
		Queryable: []string{"id", "classroom_id", "name", "code", "max_marks"},
		Writable:  []string{"classroom_id", "name", "code", "max_marks"},
		Updatable: []string{"name", "code", "max_marks"},
		Required:  []string{"classroom_id", "name", "code"},
	})
}
