package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/identity"
	redisclient "github.com/hackgods/student-eservices/internal/redis"
	"github.com/hackgods/student-eservices/internal/slot"
)

const sweepLockKey = "appointments:reminder-sweep"

// SweepResult summarizes one reminder sweep.
type SweepResult struct {
	Due    int
	Sent   int
	Failed int
}

// DueForReminder returns PENDING and CONFIRMED appointments on the calendar
// day after asOf that have not been reminded yet.
func (s *Service) DueForReminder(ctx context.Context, asOf time.Time) ([]Appointment, error) {
	from := slot.Midnight(asOf, s.slots.Location()).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	appts, err := s.repo.DueForReminder(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("find appointments due for reminder: %w", err)
	}
	return appts, nil
}

// SendReminders reminds every appointment due tomorrow. Only one sweeper
// runs at a time. An appointment is marked reminded only once its
// notification was accepted; failures stay due and are retried next sweep.
func (s *Service) SendReminders(ctx context.Context, asOf time.Time) (SweepResult, error) {
	var res SweepResult

	err := s.sweepLocker.WithLock(ctx, sweepLockKey, func(ctx context.Context) error {
		due, err := s.DueForReminder(ctx, asOf)
		if err != nil {
			return err
		}
		res.Due = len(due)

		for _, appt := range due {
			if err := ctx.Err(); err != nil {
				return err
			}

			subject, body := s.mail.reminder(appt)
			if err := s.dispatch.Send(ctx, appt.StudentID, subject, body); err != nil {
				res.Failed++
				s.log.Warn("reminder not delivered",
					zap.String("number", appt.Number),
					zap.String("student_id", appt.StudentID),
					zap.Error(err),
				)
				continue
			}

			// delivered: the mark must land even if the sweep deadline has passed
			if err := s.markReminded(context.WithoutCancel(ctx), appt.ID); err != nil {
				res.Failed++
				s.log.Error("mark reminder sent", zap.String("number", appt.Number), zap.Error(err))
				continue
			}
			res.Sent++
		}
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.log.Info("reminder sweep already running elsewhere")
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("send reminders: %w", err)
	}

	s.log.Info("reminder sweep finished",
		zap.Int("due", res.Due),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// markReminded re-reads the appointment under its lock; one cancelled or
// rescheduled since the query is left alone.
func (s *Service) markReminded(ctx context.Context, id uuid.UUID) error {
	return s.withAppointment(ctx, id, func(ctx context.Context, appt *Appointment) error {
		if appt.ReminderSent || (appt.Status != StatusPending && appt.Status != StatusConfirmed) {
			return nil
		}

		now := s.now()
		appt.ReminderSent = true
		appt.ReminderSentAt = &now
		appt.ReminderCount++
		if err := s.repo.Update(ctx, appt); err != nil {
			return err
		}

		s.logEvent(ctx, appt.ID, EventReminderSent, identity.System, map[string]any{
			"reminder_count": appt.ReminderCount,
		})
		return nil
	})
}
