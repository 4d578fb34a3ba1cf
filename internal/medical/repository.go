package medical

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/apperr"
)

var ErrNotFound = apperr.NotFound("medical examination not found")

type Repository interface {
	// Insert returns refgen.ErrDuplicate when the number or the student
	// already has a case.
	Insert(ctx context.Context, e *Examination) error
	Get(ctx context.Context, id uuid.UUID) (*Examination, error)
	// GetForUpdate locks the row for the enclosing transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Examination, error)
	GetByStudent(ctx context.Context, studentID string) (*Examination, error)
	// Update persists e and rewrites the stored progress from e.Progress().
	Update(ctx context.Context, e *Examination) error
	List(ctx context.Context, status Status) ([]Examination, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
