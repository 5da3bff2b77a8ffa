package store

import "time"

// Classroom is the owner of subjects and exams. Code is globally unique.
type Classroom struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Code         string    `db:"code"`
	AcademicYear string    `db:"academic_year"`
	Semester     int       `db:"semester"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewClassrooms returns the mapper for the classrooms table.
func NewClassrooms() *Mapper[Classroom] {
	return NewMapper[Classroom](MapperSpec{
		Table:     "classrooms",
		Queryable: []string{"id", "name", "code", "academic_year", "semester", "created_at"},
		Writable:  []string{"name", "code", "academic_year", "semester"},
		Updatable: []string{"name", "code", "academic_year", "semester"},
		Required:  []string{"name", "code", "academic_year", "semester"},
	})
}
