// Package medical tracks each student's medical clearance from clinic
// appointment through test results to EMGS submission.
package medical

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
	"github.com/hackgods/student-eservices/internal/notify"
	"github.com/hackgods/student-eservices/internal/phone"
	"github.com/hackgods/student-eservices/internal/refgen"
)

// StatusListener is told about every status change inside the transaction
// that makes it, so dependent records can be kept consistent.
type StatusListener interface {
	MedicalStatusChanged(ctx context.Context, exam Examination, from Status) error
}

type Tracker struct {
	repo        Repository
	tx          db.Transactor
	seq         refgen.Sequencer
	dir         identity.Directory
	dispatch    *notify.Dispatcher
	log         *zap.Logger
	loc         *time.Location
	phoneRegion string
	listener    StatusListener
	now         func() time.Time
}

type Deps struct {
	Repo        Repository
	Tx          db.Transactor
	Sequencer   refgen.Sequencer
	Directory   identity.Directory
	Dispatcher  *notify.Dispatcher
	Log         *zap.Logger
	Location    *time.Location
	PhoneRegion string
	Now         func() time.Time
}

func NewTracker(d Deps) *Tracker {
	t := &Tracker{
		repo:        d.Repo,
		tx:          d.Tx,
		seq:         d.Sequencer,
		dir:         d.Directory,
		dispatch:    d.Dispatcher,
		log:         d.Log,
		loc:         d.Location,
		phoneRegion: d.PhoneRegion,
		now:         d.Now,
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// SetListener registers the single status listener.
func (t *Tracker) SetListener(l StatusListener) {
	t.listener = l
}

// GetOrCreate returns the student's case, opening a PENDING one on first
// access.
func (t *Tracker) GetOrCreate(ctx context.Context, studentID string) (*Examination, error) {
	exam, err := t.repo.GetByStudent(ctx, studentID)
	if err == nil {
		return exam, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load medical examination: %w", err)
	}

	if _, err := t.dir.Lookup(ctx, studentID); err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}

	exam = &Examination{
		ID:        uuid.New(),
		StudentID: studentID,
		Status:    StatusPending,
	}

	var existing *Examination
	_, err = refgen.Allocate(ctx, t.seq, refgen.PrefixMedical, t.now(), func(number string) error {
		exam.Number = number
		err := t.repo.Insert(ctx, exam)
		if errors.Is(err, refgen.ErrDuplicate) {
			// a concurrent first access may have won the student row
			if found, getErr := t.repo.GetByStudent(ctx, studentID); getErr == nil {
				existing = found
				return nil
			}
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create medical examination: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	t.log.Info("medical examination created", zap.String("number", exam.Number), zap.String("student_id", studentID))
	return exam, nil
}

func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*Examination, error) {
	exam, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get medical examination: %w", err)
	}
	return exam, nil
}

func (t *Tracker) GetByStudent(ctx context.Context, studentID string) (*Examination, error) {
	exam, err := t.repo.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get medical examination: %w", err)
	}
	return exam, nil
}

// ScheduleAppointment records the clinic visit the student arranged.
func (t *Tracker) ScheduleAppointment(ctx context.Context, studentID string, visit ClinicVisit, caller identity.Caller) (*Examination, error) {
	if !caller.IsStaff() && !caller.Owns(studentID) {
		return nil, apperr.Forbidden("cannot schedule another student's medical examination")
	}
	if visit.At.IsZero() {
		return nil, apperr.Validation("appointment time is required")
	}
	if visit.ClinicName == "" {
		return nil, apperr.Validation("clinic name is required")
	}

	exam, err := t.GetOrCreate(ctx, studentID)
	if err != nil {
		return nil, err
	}

	exam, err = t.mutate(ctx, exam.ID, caller, func(e *Examination) error {
		if err := checkTransition(e.Status, StatusScheduled); err != nil {
			return err
		}
		at := visit.At
		e.AppointmentAt = &at
		e.ClinicName = visit.ClinicName
		e.ClinicAddress = visit.ClinicAddress
		e.ClinicPhone = phone.NormalizeE164(visit.ClinicPhone, t.phoneRegion)
		e.Status = StatusScheduled
		return nil
	})
	if err != nil {
		return nil, err
	}

	subject, body := scheduledMail(*exam, t.loc)
	t.dispatch.Dispatch(ctx, exam.StudentID, subject, body)
	return exam, nil
}

// RecordExamination stamps the day the student was examined at the clinic.
func (t *Tracker) RecordExamination(ctx context.Context, id uuid.UUID, at time.Time, caller identity.Caller) (*Examination, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can record examinations")
	}
	if at.IsZero() {
		return nil, apperr.Validation("examination time is required")
	}

	return t.mutate(ctx, id, caller, func(e *Examination) error {
		if e.ResultAt != nil {
			return apperr.InvalidState("examination result has already been submitted")
		}
		e.ExaminationAt = &at
		return nil
	})
}

// UpdateTests merges the reported checklist items. A completed test cannot
// be reverted. Completing the last test moves the case to COMPLETED.
func (t *Tracker) UpdateTests(ctx context.Context, id uuid.UUID, u TestUpdate, caller identity.Caller) (*Examination, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can update medical tests")
	}

	return t.mutate(ctx, id, caller, func(e *Examination) error {
		if err := mergeTest(&e.ChestXrayDone, u.ChestXray, "chest X-ray"); err != nil {
			return err
		}
		if err := mergeTest(&e.BloodTestDone, u.BloodTest, "blood test"); err != nil {
			return err
		}
		if err := mergeTest(&e.UrineTestDone, u.UrineTest, "urine test"); err != nil {
			return err
		}

		if e.AllTestsCompleted() && (e.Status == StatusPending || e.Status == StatusScheduled) {
			e.Status = StatusCompleted
		}
		return nil
	})
}

func mergeTest(dst *bool, v *bool, name string) error {
	if v == nil {
		return nil
	}
	if *dst && !*v {
		return apperr.InvalidStatef("%s is already completed and cannot be reverted", name)
	}
	*dst = *v
	return nil
}

// SubmitResult records the clinic's verdict. A pass is valid for three
// months.
func (t *Tracker) SubmitResult(ctx context.Context, id uuid.UUID, passed bool, notes string, caller identity.Caller) (*Examination, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can submit medical results")
	}

	exam, err := t.mutate(ctx, id, caller, func(e *Examination) error {
		target := StatusFailed
		if passed {
			target = StatusPassed
		}
		if err := checkTransition(e.Status, target); err != nil {
			return err
		}

		now := t.now()
		e.ResultAt = &now
		e.Passed = &passed
		e.ResultNotes = notes
		e.Status = target
		if passed {
			expires := now.AddDate(0, ResultValidity, 0)
			e.ExpiresAt = &expires
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.log.Info("medical result submitted", zap.String("number", exam.Number), zap.Bool("passed", passed))
	if passed {
		subject, body := passedMail(*exam, t.loc)
		t.dispatch.Dispatch(ctx, exam.StudentID, subject, body)
	} else {
		subject, body := failedMail(*exam)
		t.dispatch.Dispatch(ctx, exam.StudentID, subject, body)
	}
	return exam, nil
}

// SubmitToEmgs forwards a passed result to EMGS.
func (t *Tracker) SubmitToEmgs(ctx context.Context, id uuid.UUID, caller identity.Caller) (*Examination, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can submit to EMGS")
	}

	exam, err := t.mutate(ctx, id, caller, func(e *Examination) error {
		if !e.HasPassed() {
			return apperr.InvalidState("only passed examinations can be submitted to EMGS")
		}
		if err := checkTransition(e.Status, StatusSubmittedToEmgs); err != nil {
			return err
		}

		now := t.now()
		e.SubmittedToEmgs = true
		e.EmgsSubmittedAt = &now
		e.EmgsReference = refgen.ExternalReference("EMGS-MED", now)
		e.Status = StatusSubmittedToEmgs
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.log.Info("medical submitted to EMGS", zap.String("number", exam.Number), zap.String("reference", exam.EmgsReference))
	subject, body := emgsMail(*exam, t.loc)
	t.dispatch.Dispatch(ctx, exam.StudentID, subject, body)
	return exam, nil
}

// mutate applies fn to a locked copy of the case, persists it and tells the
// listener about status changes, all in one transaction.
func (t *Tracker) mutate(ctx context.Context, id uuid.UUID, caller identity.Caller, fn func(e *Examination) error) (*Examination, error) {
	var updated *Examination

	err := t.tx.WithinTx(ctx, func(ctx context.Context) error {
		exam, err := t.repo.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load medical examination: %w", err)
		}
		from := exam.Status

		if err := fn(exam); err != nil {
			return err
		}
		exam.LastUpdatedBy = caller.ID

		if err := t.repo.Update(ctx, exam); err != nil {
			return err
		}

		if exam.Status != from && t.listener != nil {
			if err := t.listener.MedicalStatusChanged(ctx, *exam, from); err != nil {
				return fmt.Errorf("propagate medical status: %w", err)
			}
		}

		updated = exam
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns cases newest first; an empty status matches all.
func (t *Tracker) List(ctx context.Context, status Status) ([]Examination, error) {
	if status != "" {
		if _, err := ParseStatus(string(status)); err != nil {
			return nil, err
		}
	}
	exams, err := t.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list medical examinations: %w", err)
	}
	return exams, nil
}

func (t *Tracker) Stats(ctx context.Context) (*Stats, error) {
	counts, err := t.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("medical stats: %w", err)
	}
	st := &Stats{ByStatus: counts}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}
