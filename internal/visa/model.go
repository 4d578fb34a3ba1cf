package visa

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/medical"
)

type Status string

const (
	StatusPending              Status = "PENDING"
	StatusDocumentsSubmitted   Status = "DOCUMENTS_SUBMITTED"
	StatusEmgsProcessing       Status = "EMGS_PROCESSING"
	StatusEmgsApproved         Status = "EMGS_APPROVED"
	StatusValIssued            Status = "VAL_ISSUED"
	StatusImmigrationSubmitted Status = "IMMIGRATION_SUBMITTED"
	StatusImmigrationApproved  Status = "IMMIGRATION_APPROVED"
	StatusPassCollected        Status = "PASS_COLLECTED"
	StatusRejected             Status = "REJECTED"
)

// Each non-terminal status may also move to REJECTED.
var transitions = map[Status][]Status{
	StatusPending:              {StatusDocumentsSubmitted, StatusRejected},
	StatusDocumentsSubmitted:   {StatusEmgsProcessing, StatusRejected},
	StatusEmgsProcessing:       {StatusEmgsApproved, StatusRejected},
	StatusEmgsApproved:         {StatusValIssued, StatusRejected},
	StatusValIssued:            {StatusImmigrationSubmitted, StatusRejected},
	StatusImmigrationSubmitted: {StatusImmigrationApproved, StatusRejected},
	StatusImmigrationApproved:  {StatusPassCollected, StatusRejected},
	StatusPassCollected:        nil,
	StatusRejected:             nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", apperr.Validationf("unknown visa status %q", s)
	}
	return st, nil
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(to Status) bool {
	return slices.Contains(transitions[s], to)
}

func checkTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return apperr.InvalidStatef("visa application cannot move from %s to %s", from, to)
	}
	return nil
}

const (
	DefaultVisaType = "STUDENT_PASS"
	// ValValidity is how long a visa approval letter stays valid.
	ValValidity = 6 // months
)

type Application struct {
	ID            uuid.UUID
	Number        string
	StudentID     string
	MedicalID     *uuid.UUID
	VisaType      string
	Status        Status
	CurrentStage  string
	EmgsReference string
	ValNumber     string

	PassportNumber   string
	PassportExpiry   *time.Time
	Nationality      string
	ProgramName      string
	Faculty          string
	ProgramStartDate *time.Time

	ApplicationAt          *time.Time
	DocumentsSubmittedAt   *time.Time
	EmgsSubmittedAt        *time.Time
	EmgsApprovedAt         *time.Time
	ValIssuedAt            *time.Time
	ValExpiresAt           *time.Time
	ImmigrationSubmittedAt *time.Time
	ImmigrationApprovedAt  *time.Time
	PassCollectedAt        *time.Time

	ProcessingNotes string
	LastUpdatedBy   string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Medical is the linked case, loaded with the application. Not owned.
	Medical *medical.Examination
}

func (a Application) medicalPassed() bool {
	return a.Medical != nil && a.Medical.Status == medical.StatusPassed
}

// ReadyForEmgsSubmission holds once documents are in and the linked medical
// case has passed.
func (a Application) ReadyForEmgsSubmission() bool {
	return a.DocumentsSubmittedAt != nil && a.medicalPassed()
}

// Progress is an additive score over reached milestones, 0 to 100.
func (a Application) Progress() int {
	p := 0
	if a.ApplicationAt != nil {
		p += 5
	}
	if a.DocumentsSubmittedAt != nil {
		p += 15
	}
	if a.medicalPassed() {
		p += 10
	}
	if a.EmgsSubmittedAt != nil {
		p += 10
	}
	if a.EmgsApprovedAt != nil {
		p += 20
	}
	if a.ValIssuedAt != nil {
		p += 20
	}
	if a.ImmigrationSubmittedAt != nil {
		p += 10
	}
	if a.ImmigrationApprovedAt != nil {
		p += 5
	}
	if a.PassCollectedAt != nil {
		p += 5
	}
	return p
}

// ProgramDetails are supplied by the student when opening an application.
type ProgramDetails struct {
	VisaType         string
	PassportNumber   string
	PassportExpiry   *time.Time
	Nationality      string
	ProgramName      string
	Faculty          string
	ProgramStartDate *time.Time
}

const (
	TimelineCompleted  = "completed"
	TimelineInProgress = "in_progress"
)

type TimelineEvent struct {
	Title       string     `json:"title"`
	At          *time.Time `json:"at,omitempty"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
}

type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}
