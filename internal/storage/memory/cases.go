package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/refgen"
	"github.com/hackgods/student-eservices/internal/visa"
)

type MedicalRepository struct{ s *Store }

func (r *MedicalRepository) Insert(ctx context.Context, e *medical.Examination) error {
	return r.s.do(ctx, func(st *state) error {
		for _, existing := range st.exams {
			if existing.Number == e.Number || existing.StudentID == e.StudentID {
				return refgen.ErrDuplicate
			}
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		now := r.s.now()
		e.CreatedAt, e.UpdatedAt = now, now
		st.exams[e.ID] = *e
		return nil
	})
}

func (r *MedicalRepository) Get(ctx context.Context, id uuid.UUID) (*medical.Examination, error) {
	var out *medical.Examination
	err := r.s.do(ctx, func(st *state) error {
		e, ok := st.exams[id]
		if !ok {
			return medical.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock; the transaction already holds the store.
func (r *MedicalRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*medical.Examination, error) {
	return r.Get(ctx, id)
}

func (r *MedicalRepository) GetByStudent(ctx context.Context, studentID string) (*medical.Examination, error) {
	var out *medical.Examination
	err := r.s.do(ctx, func(st *state) error {
		for _, e := range st.exams {
			if e.StudentID == studentID {
				out = &e
				return nil
			}
		}
		return medical.ErrNotFound
	})
	return out, err
}

func (r *MedicalRepository) Update(ctx context.Context, e *medical.Examination) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.exams[e.ID]; !ok {
			return medical.ErrNotFound
		}
		e.UpdatedAt = r.s.now()
		st.exams[e.ID] = *e
		return nil
	})
}

func (r *MedicalRepository) List(ctx context.Context, status medical.Status) ([]medical.Examination, error) {
	var out []medical.Examination
	err := r.s.do(ctx, func(st *state) error {
		for _, e := range st.exams {
			if status == "" || e.Status == status {
				out = append(out, e)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b medical.Examination) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, err
}

func (r *MedicalRepository) CountByStatus(ctx context.Context) (map[medical.Status]int, error) {
	counts := map[medical.Status]int{}
	err := r.s.do(ctx, func(st *state) error {
		for _, e := range st.exams {
			counts[e.Status]++
		}
		return nil
	})
	return counts, err
}

// VisaRepository stores applications without their linked medical case.
type VisaRepository struct{ s *Store }

func (r *VisaRepository) Insert(ctx context.Context, a *visa.Application) error {
	return r.s.do(ctx, func(st *state) error {
		for _, existing := range st.visas {
			if existing.Number == a.Number || existing.StudentID == a.StudentID {
				return refgen.ErrDuplicate
			}
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		now := r.s.now()
		a.CreatedAt, a.UpdatedAt = now, now
		stored := *a
		stored.Medical = nil
		st.visas[a.ID] = stored
		return nil
	})
}

func (r *VisaRepository) find(ctx context.Context, match func(a visa.Application) bool) (*visa.Application, error) {
	var out *visa.Application
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.visas {
			if match(a) {
				out = &a
				return nil
			}
		}
		return visa.ErrNotFound
	})
	return out, err
}

func (r *VisaRepository) Get(ctx context.Context, id uuid.UUID) (*visa.Application, error) {
	return r.find(ctx, func(a visa.Application) bool { return a.ID == id })
}

func (r *VisaRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*visa.Application, error) {
	return r.Get(ctx, id)
}

func (r *VisaRepository) GetByStudent(ctx context.Context, studentID string) (*visa.Application, error) {
	return r.find(ctx, func(a visa.Application) bool { return a.StudentID == studentID })
}

func (r *VisaRepository) GetByMedicalForUpdate(ctx context.Context, medicalID uuid.UUID) (*visa.Application, error) {
	return r.find(ctx, func(a visa.Application) bool { return a.MedicalID != nil && *a.MedicalID == medicalID })
}

// UpdateProgress only touches the timestamp; progress is derived on read.
func (r *VisaRepository) UpdateProgress(ctx context.Context, id uuid.UUID, _ int) error {
	return r.s.do(ctx, func(st *state) error {
		a, ok := st.visas[id]
		if !ok {
			return visa.ErrNotFound
		}
		a.UpdatedAt = r.s.now()
		st.visas[id] = a
		return nil
	})
}

func (r *VisaRepository) Update(ctx context.Context, a *visa.Application) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.visas[a.ID]; !ok {
			return visa.ErrNotFound
		}
		a.UpdatedAt = r.s.now()
		stored := *a
		stored.Medical = nil
		st.visas[a.ID] = stored
		return nil
	})
}

func (r *VisaRepository) List(ctx context.Context, status visa.Status) ([]visa.Application, error) {
	var out []visa.Application
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.visas {
			if status == "" || a.Status == status {
				out = append(out, a)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b visa.Application) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, err
}

func (r *VisaRepository) CountByStatus(ctx context.Context) (map[visa.Status]int, error) {
	counts := map[visa.Status]int{}
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.visas {
			counts[a.Status]++
		}
		return nil
	})
	return counts, err
}
