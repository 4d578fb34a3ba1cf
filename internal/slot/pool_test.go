package slot_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/slot"
	"github.com/hackgods/student-eservices/internal/storage/memory"
)

var campus = time.FixedZone("MYT", 8*60*60)

func day(d int) time.Time {
	return time.Date(2026, time.October, d, 0, 0, 0, 0, campus)
}

func newPool(t *testing.T, opts ...slot.Option) *slot.Pool {
	t.Helper()
	store := memory.New()
	opts = append([]slot.Option{slot.WithClock(func() time.Time { return day(15).Add(8 * time.Hour) })}, opts...)
	return slot.NewPool(store.Slots(), store, campus, zap.NewNop(), opts...)
}

func clinicMorning(location string, from, to time.Time) slot.GenerateRequest {
	return slot.GenerateRequest{
		LocationType: slot.LocationMedicalClinic,
		LocationName: location,
		FromDate:     from,
		ToDate:       to,
		DayStart:     9 * time.Hour,
		DayEnd:       10 * time.Hour,
		SlotDuration: 30 * time.Minute,
	}
}

func TestGenerateBookUntilFull(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)

	n, err := pool.Generate(ctx, clinicMorning("Clinic-A", day(20), day(20)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	slots, err := pool.CollectAvailable(ctx, slot.Filter{LocationName: "Clinic-A", Date: day(20)}, 0)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	for _, s := range slots {
		assert.Equal(t, 1, s.MaxCapacity)
		assert.Equal(t, 0, s.BookedCount)
		assert.True(t, s.Available)
	}
	assert.Equal(t, "09:00", slot.FormatClock(slots[0].StartsAt, campus))
	assert.Equal(t, "09:30", slot.FormatClock(slots[1].StartsAt, campus))

	for _, s := range slots {
		booked, err := pool.Book(ctx, s.Key())
		require.NoError(t, err)
		assert.Equal(t, 1, booked.BookedCount)
		assert.False(t, booked.Available)
	}

	_, err = pool.Book(ctx, slots[0].Key())
	assert.True(t, apperr.Is(err, apperr.KindSlotUnavailable))

	full, err := pool.Lookup(ctx, slots[0].Key())
	require.NoError(t, err)
	assert.Equal(t, 1, full.BookedCount)

	left, err := pool.CollectAvailable(ctx, slot.Filter{LocationName: "Clinic-A", Date: day(20)}, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestGenerateSkipsExistingSlots(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)

	n, err := pool.Generate(ctx, clinicMorning("Clinic-A", day(20), day(21)))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = pool.Generate(ctx, clinicMorning("Clinic-A", day(21), day(22)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGenerateDropsPartialTrailingSlot(t *testing.T) {
	pool := newPool(t)
	req := clinicMorning("Clinic-A", day(20), day(20))
	req.DayEnd = 10*time.Hour + 15*time.Minute

	n, err := pool.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGenerateValidation(t *testing.T) {
	pool := newPool(t)

	tests := []struct {
		name   string
		mutate func(r *slot.GenerateRequest)
	}{
		{"zero duration", func(r *slot.GenerateRequest) { r.SlotDuration = 0 }},
		{"empty window", func(r *slot.GenerateRequest) { r.DayEnd = r.DayStart }},
		{"reversed dates", func(r *slot.GenerateRequest) { r.ToDate = day(19) }},
		{"missing location", func(r *slot.GenerateRequest) { r.LocationName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := clinicMorning("Clinic-A", day(20), day(20))
			tt.mutate(&req)
			_, err := pool.Generate(context.Background(), req)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestReleaseIsFlooredAtZero(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	_, err := pool.Generate(ctx, clinicMorning("Clinic-A", day(20), day(20)))
	require.NoError(t, err)

	key := slot.Key{LocationName: "Clinic-A", StartsAt: slot.At(day(20), 9*time.Hour, campus)}

	_, err = pool.Book(ctx, key)
	require.NoError(t, err)

	s, err := pool.Release(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.BookedCount)
	assert.True(t, s.Available)

	s, err = pool.Release(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.BookedCount)
	assert.True(t, s.Available)

	_, err = pool.Release(ctx, slot.Key{LocationName: "Clinic-A", StartsAt: day(25)})
	assert.ErrorIs(t, err, slot.ErrNotFound)
}

func TestCapacityHoldsUnderConcurrentBooking(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	req := clinicMorning("Clinic-A", day(20), day(20))
	req.DayEnd = 9*time.Hour + 30*time.Minute
	req.Capacity = 3
	_, err := pool.Generate(ctx, req)
	require.NoError(t, err)

	key := slot.Key{LocationName: "Clinic-A", StartsAt: slot.At(day(20), 9*time.Hour, campus)}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		refused int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Book(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.Is(err, apperr.KindSlotUnavailable) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, refused)

	s, err := pool.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, s.BookedCount)
	assert.False(t, s.Available)
}

func TestFindAvailableFilters(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)

	_, err := pool.Generate(ctx, clinicMorning("Clinic-A", day(15), day(30)))
	require.NoError(t, err)
	office := clinicMorning("Office-1", day(16), day(16))
	office.LocationType = slot.LocationInternationalOffice
	_, err = pool.Generate(ctx, office)
	require.NoError(t, err)

	count := func(f slot.Filter) int {
		t.Helper()
		slots, err := pool.CollectAvailable(ctx, f, 0)
		require.NoError(t, err)
		return len(slots)
	}

	// name only: that date
	assert.Equal(t, 2, count(slot.Filter{LocationName: "Clinic-A", Date: day(16)}))
	// type only: date through date+7
	assert.Equal(t, 16, count(slot.Filter{LocationType: slot.LocationMedicalClinic, Date: day(16)}))
	assert.Equal(t, 6, count(slot.Filter{LocationType: slot.LocationMedicalClinic, Date: day(16), LookaheadDays: 2}))
	// both: that date only
	assert.Equal(t, 2, count(slot.Filter{LocationName: "Office-1", LocationType: slot.LocationInternationalOffice, Date: day(16)}))
	assert.Equal(t, 0, count(slot.Filter{LocationName: "Office-1", LocationType: slot.LocationMedicalClinic, Date: day(16)}))
	// neither: everything
	assert.Equal(t, 34, count(slot.Filter{}))
	// zero date means today
	assert.Equal(t, 2, count(slot.Filter{LocationName: "Clinic-A"}))
}

func TestFindAvailableOrderedAndRestartable(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t, slot.WithPageSize(3))

	_, err := pool.Generate(ctx, clinicMorning("Clinic-B", day(20), day(22)))
	require.NoError(t, err)
	_, err = pool.Generate(ctx, clinicMorning("Clinic-A", day(20), day(22)))
	require.NoError(t, err)

	seq := pool.FindAvailable(ctx, slot.Filter{})

	collect := func() []slot.TimeSlot {
		var out []slot.TimeSlot
		for s, err := range seq {
			require.NoError(t, err)
			out = append(out, s)
		}
		return out
	}

	first := collect()
	require.Len(t, first, 12)
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		assert.True(t, prev.StartsAt.Before(cur.StartsAt) ||
			(prev.StartsAt.Equal(cur.StartsAt) && prev.LocationName < cur.LocationName))
	}
	assert.Equal(t, first, collect())

	// stopping early yields exactly the prefix
	var taken []slot.TimeSlot
	for s := range seq {
		taken = append(taken, s)
		if len(taken) == 4 {
			break
		}
	}
	assert.Equal(t, first[:4], taken)
}

func TestCollectAvailableLimit(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	_, err := pool.Generate(ctx, clinicMorning("Clinic-A", day(20), day(22)))
	require.NoError(t, err)

	slots, err := pool.CollectAvailable(ctx, slot.Filter{}, 5)
	require.NoError(t, err)
	assert.Len(t, slots, 5)
}
