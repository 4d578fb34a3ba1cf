package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/slot"
)

type SlotRepository struct{ s *Store }

func (r *SlotRepository) Insert(ctx context.Context, ts *slot.TimeSlot) (bool, error) {
	inserted := false
	err := r.s.do(ctx, func(st *state) error {
		k := ts.Key().String()
		if _, ok := st.slots[k]; ok {
			return nil
		}
		if ts.ID == uuid.Nil {
			ts.ID = uuid.New()
		}
		now := r.s.now()
		ts.CreatedAt, ts.UpdatedAt = now, now
		ts.Available = ts.HasCapacity()
		st.slots[k] = *ts
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *SlotRepository) Get(ctx context.Context, key slot.Key) (*slot.TimeSlot, error) {
	var out *slot.TimeSlot
	err := r.s.do(ctx, func(st *state) error {
		ts, ok := st.slots[key.String()]
		if !ok {
			return slot.ErrNotFound
		}
		out = &ts
		return nil
	})
	return out, err
}

func (r *SlotRepository) Increment(ctx context.Context, key slot.Key) (*slot.TimeSlot, error) {
	return r.adjust(ctx, key, func(ts *slot.TimeSlot) error {
		if !ts.HasCapacity() {
			return slot.ErrUnavailable
		}
		ts.BookedCount++
		return nil
	})
}

func (r *SlotRepository) Decrement(ctx context.Context, key slot.Key) (*slot.TimeSlot, error) {
	return r.adjust(ctx, key, func(ts *slot.TimeSlot) error {
		ts.BookedCount = max(ts.BookedCount-1, 0)
		return nil
	})
}

func (r *SlotRepository) adjust(ctx context.Context, key slot.Key, fn func(ts *slot.TimeSlot) error) (*slot.TimeSlot, error) {
	var out *slot.TimeSlot
	err := r.s.do(ctx, func(st *state) error {
		ts, ok := st.slots[key.String()]
		if !ok {
			return slot.ErrNotFound
		}
		if err := fn(&ts); err != nil {
			return err
		}
		ts.Available = ts.HasCapacity()
		ts.UpdatedAt = r.s.now()
		st.slots[key.String()] = ts
		out = &ts
		return nil
	})
	return out, err
}

func (r *SlotRepository) ListAvailable(ctx context.Context, q slot.Query, after *slot.Cursor, limit int) ([]slot.TimeSlot, error) {
	var out []slot.TimeSlot
	err := r.s.do(ctx, func(st *state) error {
		for _, ts := range st.slots {
			if !ts.Available {
				continue
			}
			if q.LocationName != "" && ts.LocationName != q.LocationName {
				continue
			}
			if q.LocationType != "" && ts.LocationType != q.LocationType {
				continue
			}
			if q.From != nil && ts.StartsAt.Before(*q.From) {
				continue
			}
			if q.To != nil && !ts.StartsAt.Before(*q.To) {
				continue
			}
			if after != nil && compareSlot(ts, after.StartsAt, after.LocationName) <= 0 {
				continue
			}
			out = append(out, ts)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b slot.TimeSlot) int {
		return compareSlot(a, b.StartsAt, b.LocationName)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func compareSlot(ts slot.TimeSlot, startsAt time.Time, locationName string) int {
	if c := ts.StartsAt.Compare(startsAt); c != 0 {
		return c
	}
	return strings.Compare(ts.LocationName, locationName)
}
