package medical

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/apperr"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusScheduled       Status = "SCHEDULED"
	StatusCompleted       Status = "COMPLETED"
	StatusPassed          Status = "PASSED"
	StatusFailed          Status = "FAILED"
	StatusSubmittedToEmgs Status = "SUBMITTED_TO_EMGS"
)

// FAILED is a dead end; a retest is handled outside the tracker.
var transitions = map[Status][]Status{
	StatusPending:         {StatusScheduled, StatusCompleted},
	StatusScheduled:       {StatusScheduled, StatusCompleted},
	StatusCompleted:       {StatusPassed, StatusFailed},
	StatusPassed:          {StatusSubmittedToEmgs},
	StatusFailed:          nil,
	StatusSubmittedToEmgs: nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", apperr.Validationf("unknown medical status %q", s)
	}
	return st, nil
}

func (s Status) CanTransitionTo(to Status) bool {
	return slices.Contains(transitions[s], to)
}

func checkTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return apperr.InvalidStatef("medical examination cannot move from %s to %s", from, to)
	}
	return nil
}

// ResultValidity is how long a passed result stays valid.
const ResultValidity = 3 // months

// Examination is a student's medical clearance case.
type Examination struct {
	ID        uuid.UUID
	Number    string
	StudentID string
	Status    Status

	AppointmentAt *time.Time
	ClinicName    string
	ClinicAddress string
	ClinicPhone   string

	ExaminationAt *time.Time
	ResultAt      *time.Time
	Passed        *bool
	ResultNotes   string

	ChestXrayDone bool
	BloodTestDone bool
	UrineTestDone bool

	SubmittedToEmgs bool
	EmgsSubmittedAt *time.Time
	EmgsReference   string

	ExpiresAt     *time.Time
	LastUpdatedBy string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Progress is an additive score over completed milestones, 0 to 100.
func (e Examination) Progress() int {
	p := 0
	if e.AppointmentAt != nil {
		p += 20
	}
	if e.ExaminationAt != nil {
		p += 20
	}
	if e.ChestXrayDone {
		p += 13
	}
	if e.BloodTestDone {
		p += 13
	}
	if e.UrineTestDone {
		p += 14
	}
	if e.ResultAt != nil {
		p += 10
	}
	if e.SubmittedToEmgs {
		p += 10
	}
	return p
}

func (e Examination) AllTestsCompleted() bool {
	return e.ChestXrayDone && e.BloodTestDone && e.UrineTestDone
}

func (e Examination) HasPassed() bool {
	return e.Passed != nil && *e.Passed
}

// Expired reports a passed result past its validity window.
func (e Examination) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// ClinicVisit is the appointment a student arranges with a panel clinic.
type ClinicVisit struct {
	At            time.Time
	ClinicName    string
	ClinicAddress string
	ClinicPhone   string
}

// TestUpdate carries only the checklist items being reported; nil leaves
// an item unchanged.
type TestUpdate struct {
	ChestXray *bool
	BloodTest *bool
	UrineTest *bool
}

type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}
