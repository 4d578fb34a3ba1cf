package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/refgen"
)

type AppointmentRepository struct{ s *Store }

func (r *AppointmentRepository) Insert(ctx context.Context, a *appointment.Appointment) error {
	return r.s.do(ctx, func(st *state) error {
		for _, existing := range st.appointments {
			if existing.Number == a.Number {
				return refgen.ErrDuplicate
			}
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		now := r.s.now()
		a.CreatedAt, a.UpdatedAt = now, now
		st.appointments[a.ID] = *a
		return nil
	})
}

func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var out *appointment.Appointment
	err := r.s.do(ctx, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return appointment.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *AppointmentRepository) Update(ctx context.Context, a *appointment.Appointment) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.appointments[a.ID]; !ok {
			return appointment.ErrNotFound
		}
		a.UpdatedAt = r.s.now()
		st.appointments[a.ID] = *a
		return nil
	})
}

func (r *AppointmentRepository) filter(ctx context.Context, keep func(a appointment.Appointment) bool, newestFirst bool) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.appointments {
			if keep(a) {
				out = append(out, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b appointment.Appointment) int {
		if newestFirst {
			return b.StartsAt.Compare(a.StartsAt)
		}
		return a.StartsAt.Compare(b.StartsAt)
	})
	return out, nil
}

func (r *AppointmentRepository) ListByStudent(ctx context.Context, studentID string, status appointment.Status) ([]appointment.Appointment, error) {
	return r.filter(ctx, func(a appointment.Appointment) bool {
		return a.StudentID == studentID && (status == "" || a.Status == status)
	}, true)
}

func (r *AppointmentRepository) Upcoming(ctx context.Context, studentID string, from time.Time) ([]appointment.Appointment, error) {
	return r.filter(ctx, func(a appointment.Appointment) bool {
		return a.StudentID == studentID && !a.StartsAt.Before(from) && a.Status.HoldsSlot()
	}, false)
}

func (r *AppointmentRepository) List(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	return r.filter(ctx, func(a appointment.Appointment) bool {
		switch {
		case f.Status != "" && a.Status != f.Status:
			return false
		case f.Type != "" && a.Type != f.Type:
			return false
		case f.AssignedStaff != "" && a.AssignedStaff != f.AssignedStaff:
			return false
		case f.From != nil && a.StartsAt.Before(*f.From):
			return false
		case f.To != nil && !a.StartsAt.Before(*f.To):
			return false
		}
		return true
	}, true)
}

func (r *AppointmentRepository) DueForReminder(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	return r.filter(ctx, func(a appointment.Appointment) bool {
		if a.ReminderSent || (a.Status != appointment.StatusPending && a.Status != appointment.StatusConfirmed) {
			return false
		}
		return !a.StartsAt.Before(from) && a.StartsAt.Before(to)
	}, false)
}

func (r *AppointmentRepository) Counts(ctx context.Context) ([]appointment.Count, error) {
	type bucket struct {
		status appointment.Status
		typ    appointment.Type
	}
	counts := map[bucket]int{}
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.appointments {
			counts[bucket{a.Status, a.Type}]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]appointment.Count, 0, len(counts))
	for b, n := range counts {
		out = append(out, appointment.Count{Status: b.status, Type: b.typ, N: n})
	}
	return out, nil
}

func (r *AppointmentRepository) InsertEvent(ctx context.Context, ev appointment.Event) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.appointments[ev.AppointmentID]; !ok {
			return appointment.ErrNotFound
		}
		ev.ID = int64(len(st.events) + 1)
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = r.s.now()
		}
		st.events = append(st.events, ev)
		return nil
	})
}

func (r *AppointmentRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]appointment.Event, error) {
	var out []appointment.Event
	err := r.s.do(ctx, func(st *state) error {
		for _, ev := range st.events {
			if ev.AppointmentID == appointmentID {
				out = append(out, ev)
			}
		}
		return nil
	})
	return out, err
}
