package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Role values for User.Role. Role drives all downstream authorization but
// is stored as plain text; the mapper does not enforce transitions.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// User is an account of any role. Username and email are globally unique.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Name         string    `db:"name"`
	Email        *string   `db:"email"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewUsers returns the mapper for the users table.
func NewUsers() *Mapper[User] {
	return NewMapper[User](MapperSpec{
		Table:     "users",
		Queryable: []string{"id", "username", "password_hash", "role", "name", "email", "active", "created_at"},
		Writable:  []string{"username", "password_hash", "role", "name", "email", "active"},
		Updatable: []string{"username", "password_hash", "role", "name", "email", "active"},
		Required:  []string{"username", "password_hash", "role", "name"},
	})
}

// ClassStudents returns the active students assigned to a classroom. The
// role filter lives in the query, so a username that resolves to a teacher
// or admin is simply not in the result.
func (s *Store) ClassStudents(ctx context.Context, db DBTX, classID int64) ([]User, error) {
	const q = `
		SELECT u.id, u.username, u.password_hash, u.role, u.name, u.email, u.active, u.created_at
		FROM users u
		JOIN student_class sc ON sc.student_id = u.id
		WHERE sc.class_id = $1 AND u.role = 'student'`

	rows, err := db.Query(ctx, q, classID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByNameLax[User])
}
