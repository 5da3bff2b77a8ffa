package store

import (
	"context"
	"fmt"
)

// schemaDDL is the persisted contract of the whole system. Classroom owns
// subjects and exams, exam owns results; ownership edges cascade on delete.
// Users are referenced, never owned.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	username VARCHAR(50) UNIQUE NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(10) NOT NULL CHECK (role IN ('admin', 'teacher', 'student')),
	name VARCHAR(120) NOT NULL,
	email VARCHAR(255) UNIQUE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS classrooms (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name VARCHAR(120) NOT NULL,
	code VARCHAR(50) UNIQUE NOT NULL,
	academic_year VARCHAR(9) NOT NULL,
	semester INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS teacher_class (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	teacher_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	class_id BIGINT NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	UNIQUE (teacher_id, class_id)
);

CREATE TABLE IF NOT EXISTS student_class (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	student_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	class_id BIGINT NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	UNIQUE (student_id, class_id)
);

CREATE TABLE IF NOT EXISTS subjects (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	classroom_id BIGINT NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	name VARCHAR(120) NOT NULL,
	code VARCHAR(50) NOT NULL,
	max_marks INT NOT NULL DEFAULT 100,
	UNIQUE (classroom_id, code)
);

CREATE TABLE IF NOT EXISTS exams (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	classroom_id BIGINT NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	name VARCHAR(120) NOT NULL,
	exam_date DATE NOT NULL,
	created_by BIGINT NOT NULL REFERENCES users(id),
	published BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (classroom_id, name)
);

CREATE TABLE IF NOT EXISTS results (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	marks DECIMAL(5,2) NOT NULL,
	grade VARCHAR(5),
	uploaded_by BIGINT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (exam_id, student_id, subject_id)
);
`

// Migrate creates any missing tables. Statements are idempotent, so running
// it on every startup is safe.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
