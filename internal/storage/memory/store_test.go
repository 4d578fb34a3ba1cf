package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/student-eservices/internal/refgen"
	"github.com/hackgods/student-eservices/internal/slot"
)

func testSlot() *slot.TimeSlot {
	return &slot.TimeSlot{
		LocationName: "Clinic-A",
		StartsAt:     time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC),
		EndsAt:       time.Date(2026, 10, 20, 1, 30, 0, 0, time.UTC),
		MaxCapacity:  1,
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	ts := testSlot()
	_, err := s.Slots().Insert(ctx, ts)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Slots().Increment(ctx, ts.Key()); err != nil {
			return err
		}
		if _, err := s.Sequencer().Next(ctx, refgen.PrefixAppointment, 2026); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Slots().Get(ctx, ts.Key())
	require.NoError(t, err)
	assert.Equal(t, 0, got.BookedCount)
	assert.True(t, got.Available)

	n, err := s.Sequencer().Next(ctx, refgen.PrefixAppointment, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNestedTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()
	ts := testSlot()
	_, err := s.Slots().Insert(ctx, ts)
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context) error {
		return s.WithinTx(ctx, func(ctx context.Context) error {
			_, err := s.Slots().Increment(ctx, ts.Key())
			return err
		})
	})
	require.NoError(t, err)

	got, err := s.Slots().Get(ctx, ts.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, got.BookedCount)
	assert.False(t, got.Available)

	_, err = s.Slots().Increment(ctx, ts.Key())
	assert.ErrorIs(t, err, slot.ErrUnavailable)
}

func TestSlotInsertReportsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.Slots().Insert(ctx, testSlot())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Slots().Insert(ctx, testSlot())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSequencerCountsPerPrefixAndYear(t *testing.T) {
	ctx := context.Background()
	seq := New().Sequencer()

	for want := int64(1); want <= 3; want++ {
		n, err := seq.Next(ctx, refgen.PrefixVisa, 2026)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := seq.Next(ctx, refgen.PrefixVisa, 2027)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = seq.Next(ctx, refgen.PrefixMedical, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
