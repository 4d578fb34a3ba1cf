// Package appointment is the ledger of face-to-face appointments. Every
// booking holds one unit of a slot's capacity until it is cancelled or ends.
package appointment

import (
	"context"
	"encoding/json"
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
	redisclient "github.com/hackgods/student-eservices/internal/redis"
	"github.com/hackgods/student-eservices/internal/refgen"
	"github.com/hackgods/student-eservices/internal/slot"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed     = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventReminderSent             = "APPOINTMENT_REMINDER_SENT"
)

// Lock contention is reported as SlotUnavailable on every operation so
// callers can treat it as one retryable condition.
var (
	ErrSlotBeingBooked = apperr.SlotUnavailable("slot is currently being booked, please retry")
	ErrAppointmentBusy = apperr.SlotUnavailable("appointment is being modified, please retry")
)

// Deps are the collaborators of the ledger.
type Deps struct {
	Repo       Repository
	Slots      *slot.Pool
	Tx         db.Transactor
	Locker     redisclient.Locker
	Sequencer  refgen.Sequencer
	Directory  identity.Directory
	Dispatcher *notify.Dispatcher
	Log        *zap.Logger

	// SweepLocker guards SendReminders. Defaults to Locker.
	SweepLocker redisclient.Locker
	PhoneRegion string
	Now         func() time.Time
}

type Service struct {
	repo        Repository
	slots       *slot.Pool
	tx          db.Transactor
	locker      redisclient.Locker
	sweepLocker redisclient.Locker
	seq         refgen.Sequencer
	dir         identity.Directory
	dispatch    *notify.Dispatcher
	log         *zap.Logger
	mail        mailer
	phoneRegion string
	now         func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:        d.Repo,
		slots:       d.Slots,
		tx:          d.Tx,
		locker:      d.Locker,
		sweepLocker: d.SweepLocker,
		seq:         d.Sequencer,
		dir:         d.Directory,
		dispatch:    d.Dispatcher,
		log:         d.Log,
		mail:        mailer{loc: d.Slots.Location()},
		phoneRegion: d.PhoneRegion,
		now:         d.Now,
	}
	if s.sweepLocker == nil {
		s.sweepLocker = s.locker
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type BookRequest struct {
	StudentID       string
	Type            Type
	LocationName    string
	StartsAt        time.Time
	LocationAddress string
	LocationPhone   string
	Purpose         string
	Notes           string
}

// Book reserves the slot at (LocationName, StartsAt) and records the
// appointment. The slot increment and the insert commit together; concurrent
// bookings for the same slot serialize on the slot lock.
func (s *Service) Book(ctx context.Context, req BookRequest, caller identity.Caller) (*Appointment, error) {
	if !caller.IsStaff() && !caller.Owns(req.StudentID) {
		return nil, apperr.Forbidden("cannot book an appointment for another student")
	}
	if _, err := ParseType(string(req.Type)); err != nil {
		return nil, err
	}

	if _, err := s.dir.Lookup(ctx, req.StudentID); err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}

	key := slot.Key{LocationName: req.LocationName, StartsAt: req.StartsAt}
	ts, err := s.slots.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if !ts.Accepts(string(req.Type)) {
		return nil, apperr.SlotUnavailable(fmt.Sprintf("slot is reserved for %s appointments", ts.AppointmentType))
	}

	var created *Appointment

	err = s.locker.WithLock(ctx, key.String(), func(lockCtx context.Context) error {
		return s.tx.WithinTx(lockCtx, func(txCtx context.Context) error {
			booked, err := s.slots.Book(txCtx, key)
			if err != nil {
				return err
			}

			appt := &Appointment{
				ID:              uuid.New(),
				StudentID:       req.StudentID,
				Type:            req.Type,
				LocationName:    booked.LocationName,
				LocationAddress: req.LocationAddress,
				LocationPhone:   phone.NormalizeE164(req.LocationPhone, s.phoneRegion),
				RoomNumber:      booked.RoomNumber,
				StartsAt:        booked.StartsAt,
				DurationMinutes: durationFor(*booked, req.Type),
				AssignedStaff:   booked.StaffID,
				Status:          StatusPending,
				Purpose:         req.Purpose,
				StudentNotes:    req.Notes,
				CreatedBy:       caller.ID,
			}

			_, err = refgen.Allocate(txCtx, s.seq, refgen.PrefixAppointment, s.now(), func(number string) error {
				appt.Number = number
				return s.repo.Insert(txCtx, appt)
			})
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("number", created.Number),
		zap.String("student_id", created.StudentID),
		zap.String("slot", key.String()),
	)
	s.logEvent(ctx, created.ID, EventAppointmentBooked, caller, map[string]any{
		"number":    created.Number,
		"location":  created.LocationName,
		"starts_at": created.StartsAt,
	})
	subject, body := s.mail.booked(*created)
	s.dispatch.Dispatch(ctx, created.StudentID, subject, body)

	return created, nil
}

func durationFor(ts slot.TimeSlot, t Type) int {
	if d := ts.Duration(); d > 0 {
		return int(d / time.Minute)
	}
	return int(t.DefaultDuration() / time.Minute)
}

// Confirm is performed by the owning student only.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, caller identity.Caller) (*Appointment, error) {
	var updated *Appointment

	err := s.withAppointment(ctx, id, func(ctx context.Context, appt *Appointment) error {
		if !caller.Owns(appt.StudentID) {
			return apperr.Forbidden("only the student who booked the appointment can confirm it")
		}
		if err := checkTransition(appt.Status, StatusConfirmed); err != nil {
			return err
		}

		now := s.now()
		appt.Status = StatusConfirmed
		appt.Confirmed = true
		appt.ConfirmedAt = &now

		if err := s.repo.Update(ctx, appt); err != nil {
			return fmt.Errorf("confirm appointment: %w", err)
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, caller, map[string]any{})
	return updated, nil
}

// Cancel releases the appointment's slot and marks it CANCELLED. A slot that
// no longer exists does not block the cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, caller identity.Caller) (*Appointment, error) {
	var updated *Appointment

	err := s.withAppointment(ctx, id, func(ctx context.Context, appt *Appointment) error {
		if !caller.IsStaff() && !caller.Owns(appt.StudentID) {
			return apperr.Forbidden("cannot cancel another student's appointment")
		}
		if !appt.CanCancel() {
			return apperr.InvalidStatef("cannot cancel a %s appointment", appt.Status)
		}

		return s.locker.WithLock(ctx, appt.SlotKey().String(), func(lockCtx context.Context) error {
			return s.tx.WithinTx(lockCtx, func(txCtx context.Context) error {
				if err := s.releaseSlot(txCtx, *appt); err != nil {
					return err
				}

				appt.Status = StatusCancelled
				appt.CancellationReason = reason
				if err := s.repo.Update(txCtx, appt); err != nil {
					return fmt.Errorf("cancel appointment: %w", err)
				}
				updated = appt
				return nil
			})
		})
	})
	if err != nil {
		return nil, lockErr(err)
	}

	s.log.Info("appointment cancelled", zap.String("number", updated.Number), zap.String("by", caller.ID))
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, caller, map[string]any{"reason": reason})
	subject, body := s.mail.cancelled(*updated)
	s.dispatch.Dispatch(ctx, updated.StudentID, subject, body)

	return updated, nil
}

// Reschedule moves the appointment to another start time at the same
// location. The new slot is booked before the old one is released, in one
// transaction, so a full or missing target leaves everything unchanged.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStartsAt time.Time, caller identity.Caller) (*Appointment, error) {
	var updated *Appointment

	err := s.withAppointment(ctx, id, func(ctx context.Context, appt *Appointment) error {
		if !caller.IsStaff() && !caller.Owns(appt.StudentID) {
			return apperr.Forbidden("cannot reschedule another student's appointment")
		}
		if !appt.CanReschedule() {
			return apperr.InvalidStatef("cannot reschedule a %s appointment", appt.Status)
		}

		oldKey := appt.SlotKey()
		newKey := slot.Key{LocationName: appt.LocationName, StartsAt: newStartsAt}
		if oldKey.String() == newKey.String() {
			return apperr.Validation("appointment is already at that time")
		}

		keys := []string{oldKey.String(), newKey.String()}
		return redisclient.WithLocks(ctx, s.locker, keys, func(lockCtx context.Context) error {
			return s.tx.WithinTx(lockCtx, func(txCtx context.Context) error {
				target, err := s.slots.Lookup(txCtx, newKey)
				if err != nil {
					return fmt.Errorf("load new slot: %w", err)
				}
				if !target.Accepts(string(appt.Type)) {
					return apperr.SlotUnavailable(fmt.Sprintf("slot is reserved for %s appointments", target.AppointmentType))
				}

				booked, err := s.slots.Book(txCtx, newKey)
				if err != nil {
					return err
				}
				if err := s.releaseSlot(txCtx, *appt); err != nil {
					return err
				}

				if appt.OriginalStartsAt == nil {
					original := appt.StartsAt
					appt.OriginalStartsAt = &original
				}
				appt.StartsAt = booked.StartsAt
				appt.DurationMinutes = durationFor(*booked, appt.Type)
				appt.RoomNumber = booked.RoomNumber
				appt.RescheduleCount++
				appt.Status = StatusRescheduled
				// a new date deserves a new reminder
				appt.ReminderSent = false
				appt.ReminderSentAt = nil

				if err := s.repo.Update(txCtx, appt); err != nil {
					return fmt.Errorf("reschedule appointment: %w", err)
				}
				updated = appt
				return nil
			})
		})
	})
	if err != nil {
		return nil, lockErr(err)
	}

	s.log.Info("appointment rescheduled",
		zap.String("number", updated.Number),
		zap.Time("starts_at", updated.StartsAt),
		zap.Int("reschedule_count", updated.RescheduleCount),
	)
	s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, caller, map[string]any{
		"from": updated.OriginalStartsAt,
		"to":   updated.StartsAt,
	})
	subject, body := s.mail.rescheduled(*updated)
	s.dispatch.Dispatch(ctx, updated.StudentID, subject, body)

	return updated, nil
}

// UpdateStatus is the staff override, constrained by the transition table.
// Cancelling through it releases the slot like Cancel does.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, notes string, caller identity.Caller) (*Appointment, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("only staff can update appointment status")
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}

	var updated *Appointment
	var from Status

	err := s.withAppointment(ctx, id, func(ctx context.Context, appt *Appointment) error {
		if err := checkTransition(appt.Status, status); err != nil {
			return err
		}
		from = appt.Status

		apply := func(txCtx context.Context) error {
			if status == StatusCancelled {
				if err := s.releaseSlot(txCtx, *appt); err != nil {
					return err
				}
			}
			appt.Status = status
			if notes != "" {
				appt.StaffNotes = notes
			}
			if err := s.repo.Update(txCtx, appt); err != nil {
				return fmt.Errorf("update appointment status: %w", err)
			}
			updated = appt
			return nil
		}

		if status != StatusCancelled {
			return s.tx.WithinTx(ctx, apply)
		}
		return s.locker.WithLock(ctx, appt.SlotKey().String(), func(lockCtx context.Context) error {
			return s.tx.WithinTx(lockCtx, apply)
		})
	})
	if err != nil {
		return nil, lockErr(err)
	}

	s.log.Info("appointment status updated",
		zap.String("number", updated.Number),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
		zap.String("by", caller.ID),
	)
	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, caller, map[string]any{
		"from":  from,
		"to":    updated.Status,
		"notes": notes,
	})
	subject, body := s.mail.statusChanged(*updated, from)
	s.dispatch.Dispatch(ctx, updated.StudentID, subject, body)

	return updated, nil
}

// withAppointment loads the appointment under its own lock so that status
// changes on one appointment never interleave.
func (s *Service) withAppointment(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, appt *Appointment) error) error {
	err := s.locker.WithLock(ctx, "appointment:"+id.String(), func(lockCtx context.Context) error {
		appt, err := s.repo.Get(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		return fn(lockCtx, appt)
	})
	return lockErr(err)
}

// releaseSlot returns the appointment's unit of capacity. A missing slot is
// logged and ignored.
func (s *Service) releaseSlot(ctx context.Context, appt Appointment) error {
	if !appt.Status.HoldsSlot() {
		return nil
	}
	_, err := s.slots.Release(ctx, appt.SlotKey())
	if errors.Is(err, slot.ErrNotFound) {
		s.log.Warn("slot missing on release",
			zap.String("number", appt.Number),
			zap.String("slot", appt.SlotKey().String()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func lockErr(err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrAppointmentBusy
	}
	return err
}

// Get returns an appointment visible to the caller.
func (s *Service) Get(ctx context.Context, id uuid.UUID, caller identity.Caller) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !caller.IsStaff() && !caller.Owns(appt.StudentID) {
		return nil, apperr.Forbidden("cannot view another student's appointment")
	}
	return appt, nil
}

// ListForStudent returns the student's appointments newest first, optionally
// restricted to one status.
func (s *Service) ListForStudent(ctx context.Context, studentID string, status Status) ([]Appointment, error) {
	if status != "" {
		if _, err := ParseStatus(string(status)); err != nil {
			return nil, err
		}
	}
	appts, err := s.repo.ListByStudent(ctx, studentID, status)
	if err != nil {
		return nil, fmt.Errorf("list student appointments: %w", err)
	}
	return appts, nil
}

// Upcoming returns the student's slot-holding appointments from today on.
func (s *Service) Upcoming(ctx context.Context, studentID string) ([]Appointment, error) {
	today := slot.Midnight(s.now(), s.slots.Location())
	appts, err := s.repo.Upcoming(ctx, studentID, today)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appts, nil
}

// List is the staff view over every appointment.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Day is a ListFilter window covering one calendar date in the campus zone.
func (s *Service) Day(date time.Time) (from, to time.Time) {
	from = slot.Midnight(date, s.slots.Location())
	return from, from.AddDate(0, 0, 1)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment stats: %w", err)
	}

	st := &Stats{ByStatus: map[Status]int{}, ByType: map[Type]int{}}
	for _, c := range counts {
		st.Total += c.N
		st.ByStatus[c.Status] += c.N
		st.ByType[c.Type] += c.N
	}
	return st, nil
}

// History returns the audit trail of an appointment, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]Event, error) {
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment history: %w", err)
	}
	return events, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, actor identity.Caller, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := Event{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Actor:         actor.ID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("insert appointment event",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
