package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/slot"
)

type Type string

const (
	TypeMedical            Type = "MEDICAL"
	TypeOfficeConsultation Type = "OFFICE_CONSULTATION"
	TypeDocumentSubmission Type = "DOCUMENT_SUBMISSION"
	TypeVisaInterview      Type = "VISA_INTERVIEW"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeMedical, TypeOfficeConsultation, TypeDocumentSubmission, TypeVisaInterview:
		return t, nil
	}
	return "", apperr.Validationf("unknown appointment type %q", s)
}

// DefaultDuration applies when the slot does not dictate a length.
func (t Type) DefaultDuration() time.Duration {
	if t == TypeMedical {
		return 60 * time.Minute
	}
	return 30 * time.Minute
}

type Appointment struct {
	ID        uuid.UUID
	Number    string
	StudentID string
	Type      Type

	// location snapshot, copied at booking time
	LocationName    string
	LocationAddress string
	LocationPhone   string
	RoomNumber      string

	StartsAt        time.Time
	DurationMinutes int
	AssignedStaff   string
	Status          Status

	Purpose      string
	StudentNotes string
	StaffNotes   string

	Confirmed   bool
	ConfirmedAt *time.Time

	ReminderSent   bool
	ReminderSentAt *time.Time
	ReminderCount  int

	RescheduleCount    int
	OriginalStartsAt   *time.Time
	CancellationReason string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SlotKey identifies the slot this appointment occupies.
func (a Appointment) SlotKey() slot.Key {
	return slot.Key{LocationName: a.LocationName, StartsAt: a.StartsAt}
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) IsPast(now time.Time) bool {
	return a.StartsAt.Before(now)
}

func (a Appointment) IsUpcoming(now time.Time) bool {
	return a.StartsAt.After(now)
}

// NeedsReminder reports an upcoming, not yet reminded appointment that starts
// within the next 24 hours.
func (a Appointment) NeedsReminder(now time.Time) bool {
	return !a.ReminderSent && a.IsUpcoming(now) && now.Add(24*time.Hour).After(a.StartsAt)
}

func (a Appointment) CanReschedule() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

func (a Appointment) CanCancel() bool {
	return !a.Status.Terminal()
}

// ListFilter narrows the staff listing. Zero fields match everything.
type ListFilter struct {
	Status        Status
	Type          Type
	AssignedStaff string
	From          *time.Time // inclusive
	To            *time.Time // exclusive
}

type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	ByType   map[Type]int   `json:"by_type"`
}

// Count is one (status, type) bucket.
type Count struct {
	Status Status
	Type   Type
	N      int
}

// Event is an audit entry for a ledger change.
type Event struct {
	ID            int64
	EventType     string
	AppointmentID uuid.UUID
	Actor         string
	Payload       []byte
	CreatedAt     time.Time
}
