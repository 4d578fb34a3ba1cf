package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/apperr"
)

var ErrNotFound = apperr.NotFound("appointment not found")

// Repository contains all DB interactions needed by the ledger.
type Repository interface {
	// Insert returns refgen.ErrDuplicate when a.Number is already taken.
	Insert(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error

	// ListByStudent is newest first; an empty status matches all.
	ListByStudent(ctx context.Context, studentID string, status Status) ([]Appointment, error)
	// Upcoming is soonest first and only includes slot-holding statuses.
	Upcoming(ctx context.Context, studentID string, from time.Time) ([]Appointment, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	// DueForReminder returns PENDING or CONFIRMED appointments starting in
	// [from, to) that have not been reminded.
	DueForReminder(ctx context.Context, from, to time.Time) ([]Appointment, error)

	Counts(ctx context.Context) ([]Count, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]Event, error)
}
