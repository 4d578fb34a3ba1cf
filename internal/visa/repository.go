package visa

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/apperr"
)

var (
	ErrNotFound      = apperr.NotFound("visa application not found")
	ErrAlreadyExists = apperr.AlreadyExists("visa application already exists")
)

// Repository stores applications without their Medical field; the tracker
// loads the linked case.
type Repository interface {
	// Insert returns refgen.ErrDuplicate when the number or the student
	// already has an application.
	Insert(ctx context.Context, a *Application) error
	Get(ctx context.Context, id uuid.UUID) (*Application, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Application, error)
	GetByStudent(ctx context.Context, studentID string) (*Application, error)
	// GetByMedicalForUpdate locks the application linked to a medical case.
	GetByMedicalForUpdate(ctx context.Context, medicalID uuid.UUID) (*Application, error)
	// Update persists a and rewrites the stored progress from a.Progress().
	Update(ctx context.Context, a *Application) error
	// UpdateProgress rewrites only the stored progress column.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	List(ctx context.Context, status Status) ([]Application, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
