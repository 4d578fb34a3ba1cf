// Package visa tracks each student's visa application from creation to
// student pass collection. EMGS submission is gated on the linked medical
// case having passed.
package visa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/db"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/notify"
	"github.com/hackgods/student-eservices/internal/refgen"
)

const (
	stageNotStarted  = "Not Started"
	stageCreated     = "Application Created"
	stageDocuments   = "Documents Submitted - Pending Review"
	stageEmgs        = "EMGS Processing - 0%"
	stageEmgsOK      = "EMGS Approved - 32%"
	stageVal         = "VAL Issued - 70%"
	stageImmigration = "Immigration Processing"
	stageApproved    = "Student Pass Approved - Ready for Collection"
	stageCollected   = "Student Pass Collected - Complete"
	stageRejected    = "Application Rejected"
)

type Tracker struct {
	repo     Repository
	medical  *medical.Tracker
	tx       db.Transactor
	seq      refgen.Sequencer
	dir      identity.Directory
	dispatch *notify.Dispatcher
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

type Deps struct {
	Repo       Repository
	Medical    *medical.Tracker
	Tx         db.Transactor
	Sequencer  refgen.Sequencer
	Directory  identity.Directory
	Dispatcher *notify.Dispatcher
	Log        *zap.Logger
	Location   *time.Location
	Now        func() time.Time
}

// NewTracker registers the tracker as the medical tracker's status listener.
func NewTracker(d Deps) *Tracker {
	t := &Tracker{
		repo:     d.Repo,
		medical:  d.Medical,
		tx:       d.Tx,
		seq:      d.Sequencer,
		dir:      d.Directory,
		dispatch: d.Dispatcher,
		log:      d.Log,
		loc:      d.Location,
		now:      d.Now,
	}
	if t.now == nil {
		t.now = time.Now
	}
	d.Medical.SetListener(t)
	return t
}

// GetOrCreate returns the student's application, opening an empty PENDING
// one on first access.
func (t *Tracker) GetOrCreate(ctx context.Context, studentID string) (*Application, error) {
	a, err := t.repo.GetByStudent(ctx, studentID)
	if err == nil {
		return t.hydrate(ctx, a)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load visa application: %w", err)
	}

	a, created, err := t.open(ctx, studentID, func(a *Application) {
		a.VisaType = DefaultVisaType
		a.CurrentStage = stageNotStarted
	})
	if err != nil {
		return nil, err
	}
	if created {
		t.log.Info("visa application opened", zap.String("number", a.Number), zap.String("student_id", studentID))
	}
	return a, nil
}

// Create opens an application with the student's programme details.
func (t *Tracker) Create(ctx context.Context, studentID string, details ProgramDetails, caller identity.Caller) (*Application, error) {
	if !caller.IsStaff() && !caller.Owns(studentID) {
		return nil, apperr.Forbidden("cannot create a visa application for another student")
	}

	_, err := t.repo.GetByStudent(ctx, studentID)
	if err == nil {
		return nil, ErrAlreadyExists
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load visa application: %w", err)
	}

	a, created, err := t.open(ctx, studentID, func(a *Application) {
		now := t.now()
		a.VisaType = details.VisaType
		if a.VisaType == "" {
			a.VisaType = DefaultVisaType
		}
		a.PassportNumber = details.PassportNumber
		a.PassportExpiry = details.PassportExpiry
		a.Nationality = details.Nationality
		a.ProgramName = details.ProgramName
		a.Faculty = details.Faculty
		a.ProgramStartDate = details.ProgramStartDate
		a.CurrentStage = stageCreated
		a.ApplicationAt = &now
		a.LastUpdatedBy = caller.ID
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrAlreadyExists
	}

	t.log.Info("visa application created", zap.String("number", a.Number), zap.String("student_id", studentID))
	subject, body := createdMail(*a)
	t.dispatch.Dispatch(ctx, studentID, subject, body)
	return a, nil
}

// open inserts a new application linked to the student's medical case. When
// a concurrent request wins the student row the existing application is
// returned with created false.
func (t *Tracker) open(ctx context.Context, studentID string, fill func(a *Application)) (*Application, bool, error) {
	if _, err := t.dir.Lookup(ctx, studentID); err != nil {
		return nil, false, fmt.Errorf("load student: %w", err)
	}

	exam, err := t.medical.GetOrCreate(ctx, studentID)
	if err != nil {
		return nil, false, err
	}

	a := &Application{
		ID:        uuid.New(),
		StudentID: studentID,
		MedicalID: &exam.ID,
		Status:    StatusPending,
		Medical:   exam,
	}
	fill(a)

	var existing *Application
	_, err = refgen.Allocate(ctx, t.seq, refgen.PrefixVisa, t.now(), func(number string) error {
		a.Number = number
		err := t.repo.Insert(ctx, a)
		if errors.Is(err, refgen.ErrDuplicate) {
			if found, getErr := t.repo.GetByStudent(ctx, studentID); getErr == nil {
				existing = found
				return nil
			}
		}
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("create visa application: %w", err)
	}
	if existing != nil {
		existing, err = t.hydrate(ctx, existing)
		return existing, false, err
	}
	return a, true, nil
}

func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*Application, error) {
	a, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get visa application: %w", err)
	}
	return t.hydrate(ctx, a)
}

func (t *Tracker) GetByStudent(ctx context.Context, studentID string) (*Application, error) {
	a, err := t.repo.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get visa application: %w", err)
	}
	return t.hydrate(ctx, a)
}

// SubmitDocuments records that the student has handed in the required
// documents.
func (t *Tracker) SubmitDocuments(ctx context.Context, studentID string, caller identity.Caller) (*Application, error) {
	if !caller.IsStaff() && !caller.Owns(studentID) {
		return nil, apperr.Forbidden("cannot submit documents for another student")
	}

	a, err := t.repo.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load visa application: %w", err)
	}

	a, err = t.mutate(ctx, a.ID, caller, func(a *Application) error {
		if err := checkTransition(a.Status, StatusDocumentsSubmitted); err != nil {
			return err
		}
		now := t.now()
		a.DocumentsSubmittedAt = &now
		a.Status = StatusDocumentsSubmitted
		a.CurrentStage = stageDocuments
		return nil
	})
	if err != nil {
		return nil, err
	}

	subject, body := documentsMail(*a, t.loc)
	t.dispatch.Dispatch(ctx, a.StudentID, subject, body)
	return a, nil
}

// SubmitToEmgs forwards a ready application to EMGS.
func (t *Tracker) SubmitToEmgs(ctx context.Context, id uuid.UUID, caller identity.Caller) (*Application, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can submit to EMGS")
	}

	a, err := t.mutate(ctx, id, caller, func(a *Application) error {
		if !a.ReadyForEmgsSubmission() {
			return apperr.InvalidState("documents or medical examination are not complete")
		}
		if err := checkTransition(a.Status, StatusEmgsProcessing); err != nil {
			return err
		}
		now := t.now()
		a.EmgsSubmittedAt = &now
		a.EmgsReference = refgen.ExternalReference("EMGS-VISA", now)
		a.Status = StatusEmgsProcessing
		a.CurrentStage = stageEmgs
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.log.Info("visa submitted to EMGS", zap.String("number", a.Number), zap.String("reference", a.EmgsReference))
	subject, body := emgsMail(*a, t.loc)
	t.dispatch.Dispatch(ctx, a.StudentID, subject, body)
	return a, nil
}

// UpdateStatus moves the application along the post-EMGS stages and stamps
// the milestone the target status represents.
func (t *Tracker) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, notes string, caller identity.Caller) (*Application, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can update visa status")
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	switch status {
	case StatusDocumentsSubmitted, StatusEmgsProcessing:
		return nil, apperr.InvalidStatef("%s is reached through its own operation", status)
	}

	var from Status
	a, err := t.mutate(ctx, id, caller, func(a *Application) error {
		if err := checkTransition(a.Status, status); err != nil {
			return err
		}
		from = a.Status

		now := t.now()
		switch status {
		case StatusEmgsApproved:
			a.EmgsApprovedAt = &now
			a.CurrentStage = stageEmgsOK
		case StatusValIssued:
			expires := now.AddDate(0, ValValidity, 0)
			a.ValIssuedAt = &now
			a.ValExpiresAt = &expires
			a.ValNumber = refgen.ExternalReference("VAL", now)
			a.CurrentStage = stageVal
		case StatusImmigrationSubmitted:
			a.ImmigrationSubmittedAt = &now
			a.CurrentStage = stageImmigration
		case StatusImmigrationApproved:
			a.ImmigrationApprovedAt = &now
			a.CurrentStage = stageApproved
		case StatusPassCollected:
			a.PassCollectedAt = &now
			a.CurrentStage = stageCollected
		case StatusRejected:
			a.CurrentStage = stageRejected
		}
		a.Status = status
		a.ProcessingNotes = notes
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.log.Info("visa status updated",
		zap.String("number", a.Number),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	subject, body := statusMail(*a, from)
	t.dispatch.Dispatch(ctx, a.StudentID, subject, body)
	return a, nil
}

// Timeline lists the milestones the student's application has reached, in
// process order.
func (t *Tracker) Timeline(ctx context.Context, studentID string) ([]TimelineEvent, error) {
	a, err := t.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return buildTimeline(*a), nil
}

func buildTimeline(a Application) []TimelineEvent {
	var events []TimelineEvent
	add := func(title string, at *time.Time, description string) {
		if at != nil {
			events = append(events, TimelineEvent{Title: title, At: at, Status: TimelineCompleted, Description: description})
		}
	}

	add("Application Created", a.ApplicationAt, fmt.Sprintf("Application %s created", a.Number))
	add("Documents Submitted", a.DocumentsSubmittedAt, "All required documents submitted")
	if a.Medical != nil {
		status := TimelineInProgress
		if a.medicalPassed() {
			status = TimelineCompleted
		}
		events = append(events, TimelineEvent{
			Title:       "Medical Examination",
			At:          a.Medical.ResultAt,
			Status:      status,
			Description: "Medical status: " + string(a.Medical.Status),
		})
	}
	add("EMGS Submission", a.EmgsSubmittedAt, "Reference: "+a.EmgsReference)
	add("EMGS Approved", a.EmgsApprovedAt, "EMGS approval received")
	add("VAL Issued", a.ValIssuedAt, "VAL Number: "+a.ValNumber)
	add("Immigration Submission", a.ImmigrationSubmittedAt, "Submitted to the Immigration Department")
	add("Immigration Approved", a.ImmigrationApprovedAt, "Student pass approved")
	add("Pass Collected", a.PassCollectedAt, "Student pass collected")
	return events
}

// MedicalStatusChanged rewrites the stored progress of the application
// linked to exam. It runs inside the medical tracker's transaction, holds the
// application's row lock and writes nothing but progress, so milestones
// committed by a concurrent visa update are kept.
func (t *Tracker) MedicalStatusChanged(ctx context.Context, exam medical.Examination, from medical.Status) error {
	a, err := t.repo.GetByMedicalForUpdate(ctx, exam.ID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load linked visa application: %w", err)
	}

	a.Medical = &exam
	if err := t.repo.UpdateProgress(ctx, a.ID, a.Progress()); err != nil {
		return err
	}
	t.log.Debug("visa progress recomputed",
		zap.String("number", a.Number),
		zap.String("medical_from", string(from)),
		zap.String("medical_to", string(exam.Status)),
		zap.Int("progress", a.Progress()),
	)
	return nil
}

// mutate applies fn to a locked, hydrated copy of the application and
// persists it in one transaction.
func (t *Tracker) mutate(ctx context.Context, id uuid.UUID, caller identity.Caller, fn func(a *Application) error) (*Application, error) {
	var updated *Application

	err := t.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := t.repo.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load visa application: %w", err)
		}
		if a, err = t.hydrate(ctx, a); err != nil {
			return err
		}

		if err := fn(a); err != nil {
			return err
		}
		a.LastUpdatedBy = caller.ID

		if err := t.repo.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// hydrate loads the linked medical case into a.Medical.
func (t *Tracker) hydrate(ctx context.Context, a *Application) (*Application, error) {
	if a.MedicalID == nil {
		return a, nil
	}
	exam, err := t.medical.Get(ctx, *a.MedicalID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return a, nil
		}
		return nil, err
	}
	a.Medical = exam
	return a, nil
}

// List returns applications newest first; an empty status matches all.
func (t *Tracker) List(ctx context.Context, status Status) ([]Application, error) {
	if status != "" {
		if _, err := ParseStatus(string(status)); err != nil {
			return nil, err
		}
	}
	apps, err := t.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list visa applications: %w", err)
	}
	for i := range apps {
		if _, err := t.hydrate(ctx, &apps[i]); err != nil {
			return nil, err
		}
	}
	return apps, nil
}

func (t *Tracker) Stats(ctx context.Context) (*Stats, error) {
	counts, err := t.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("visa stats: %w", err)
	}
	st := &Stats{ByStatus: counts}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}
