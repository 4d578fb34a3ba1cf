package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/db"
)

var ErrStudentNotFound = apperr.NotFound("student not found")

// StudentRecord is the directory entry the engine needs to address a student.
type StudentRecord struct {
	ID       string
	FullName string
	Email    string
}

// Directory resolves student ids. The students table is owned by the
// identity provider and mirrored read-only here.
type Directory interface {
	Lookup(ctx context.Context, studentID string) (*StudentRecord, error)
}

// Registry is a Directory that can also be written, by the seeder.
type Registry interface {
	Directory
	Upsert(ctx context.Context, s StudentRecord) error
}

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) Lookup(ctx context.Context, studentID string) (*StudentRecord, error) {
	var s StudentRecord
	err := db.Conn(ctx, d.pool).QueryRow(ctx, `
		SELECT student_id, full_name, email
		FROM students
		WHERE student_id = $1
	`, studentID).Scan(&s.ID, &s.FullName, &s.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	return &s, nil
}

// Upsert mirrors a student record, used by the seeder.
func (d *PgDirectory) Upsert(ctx context.Context, s StudentRecord) error {
	_, err := db.Conn(ctx, d.pool).Exec(ctx, `
		INSERT INTO students (student_id, full_name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id) DO UPDATE
		SET full_name = EXCLUDED.full_name, email = EXCLUDED.email
	`, s.ID, s.FullName, s.Email)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}
