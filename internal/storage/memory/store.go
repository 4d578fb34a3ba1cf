// Package memory is an in-process implementation of every repository. It
// backs local development without Postgres and the service tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/slot"
	"github.com/hackgods/student-eservices/internal/visa"
)

type state struct {
	slots        map[string]slot.TimeSlot
	appointments map[uuid.UUID]appointment.Appointment
	events       []appointment.Event
	exams        map[uuid.UUID]medical.Examination
	visas        map[uuid.UUID]visa.Application
	counters     map[string]int64
	students     map[string]identity.StudentRecord
}

func (st *state) clone() state {
	return state{
		slots:        maps.Clone(st.slots),
		appointments: maps.Clone(st.appointments),
		events:       append([]appointment.Event(nil), st.events...),
		exams:        maps.Clone(st.exams),
		visas:        maps.Clone(st.visas),
		counters:     maps.Clone(st.counters),
		students:     maps.Clone(st.students),
	}
}

// Store holds all state behind one mutex. A transaction holds the mutex for
// its whole duration and restores a snapshot if it fails.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

func New() *Store {
	return &Store{
		st: state{
			slots:        map[string]slot.TimeSlot{},
			appointments: map[uuid.UUID]appointment.Appointment{},
			exams:        map[uuid.UUID]medical.Examination{},
			visas:        map[uuid.UUID]visa.Application{},
			counters:     map[string]int64{},
			students:     map[string]identity.StudentRecord{},
		},
		now: time.Now,
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// do runs fn against the state, joining the caller's transaction if any.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.st)
}

func (s *Store) Slots() *SlotRepository               { return &SlotRepository{s} }
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s} }
func (s *Store) Medical() *MedicalRepository          { return &MedicalRepository{s} }
func (s *Store) Visas() *VisaRepository               { return &VisaRepository{s} }
func (s *Store) Sequencer() *Sequencer                { return &Sequencer{s} }
func (s *Store) Directory() *Directory                { return &Directory{s} }

type Sequencer struct{ s *Store }

func (q *Sequencer) Next(ctx context.Context, prefix string, year int) (int64, error) {
	var n int64
	err := q.s.do(ctx, func(st *state) error {
		key := fmt.Sprintf("%s/%d", prefix, year)
		st.counters[key]++
		n = st.counters[key]
		return nil
	})
	return n, err
}

type Directory struct{ s *Store }

func (d *Directory) Lookup(ctx context.Context, studentID string) (*identity.StudentRecord, error) {
	var out *identity.StudentRecord
	err := d.s.do(ctx, func(st *state) error {
		student, ok := st.students[studentID]
		if !ok {
			return identity.ErrStudentNotFound
		}
		out = &student
		return nil
	})
	return out, err
}

func (d *Directory) Upsert(ctx context.Context, student identity.StudentRecord) error {
	return d.s.do(ctx, func(st *state) error {
		st.students[student.ID] = student
		return nil
	})
}
