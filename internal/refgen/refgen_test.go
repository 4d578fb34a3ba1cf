package refgen

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSeq struct {
	values map[string]int64
}

func (c *counterSeq) Next(_ context.Context, prefix string, year int) (int64, error) {
	key := Format(prefix, year, 0)
	c.values[key]++
	return c.values[key], nil
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "APT-2026-00001", Format(PrefixAppointment, 2026, 1))
	assert.Equal(t, "VA-2026-12345", Format(PrefixVisa, 2026, 12345))
	assert.Equal(t, "MED-2027-100000", Format(PrefixMedical, 2027, 100000))
}

func TestNextNumberIsPerPrefixAndYear(t *testing.T) {
	seq := &counterSeq{values: map[string]int64{}}
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	a1, err := NextNumber(ctx, seq, PrefixAppointment, now)
	require.NoError(t, err)
	a2, _ := NextNumber(ctx, seq, PrefixAppointment, now)
	m1, _ := NextNumber(ctx, seq, PrefixMedical, now)
	next, _ := NextNumber(ctx, seq, PrefixAppointment, now.AddDate(1, 0, 0))

	assert.Equal(t, "APT-2026-00001", a1)
	assert.Equal(t, "APT-2026-00002", a2)
	assert.Equal(t, "MED-2026-00001", m1)
	assert.Equal(t, "APT-2027-00001", next)
}

func TestExternalReference(t *testing.T) {
	ref := ExternalReference("EMGS-MED", time.UnixMilli(1760500000000))
	assert.Regexp(t, regexp.MustCompile(`^EMGS-MED-1760500000000-\d{4}$`), ref)
}

func TestAllocateRetriesDuplicates(t *testing.T) {
	seq := &counterSeq{values: map[string]int64{}}
	taken := map[string]bool{"VA-2026-00001": true, "VA-2026-00002": true}

	number, err := Allocate(context.Background(), seq, PrefixVisa, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), func(n string) error {
		if taken[n] {
			return ErrDuplicate
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "VA-2026-00003", number)
}

func TestAllocateGivesUp(t *testing.T) {
	seq := &counterSeq{values: map[string]int64{}}

	_, err := Allocate(context.Background(), seq, PrefixVisa, time.Now(), func(string) error {
		return ErrDuplicate
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, int64(MaxAttempts), seq.values[Format(PrefixVisa, time.Now().Year(), 0)])
}
