package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled, StatusNoShow}
	allowed := map[Status][]Status{
		StatusPending:     {StatusConfirmed, StatusCancelled, StatusRescheduled, StatusNoShow},
		StatusConfirmed:   {StatusCompleted, StatusCancelled, StatusRescheduled, StatusNoShow},
		StatusRescheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusNoShow.Terminal())
	assert.False(t, StatusRescheduled.Terminal())
}

func TestNeedsReminder(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	a := Appointment{StartsAt: now.Add(23 * time.Hour)}
	assert.True(t, a.NeedsReminder(now))

	a.ReminderSent = true
	assert.False(t, a.NeedsReminder(now))

	assert.False(t, Appointment{StartsAt: now.Add(25 * time.Hour)}.NeedsReminder(now))
	assert.False(t, Appointment{StartsAt: now.Add(-time.Hour)}.NeedsReminder(now))
}

func TestPredicates(t *testing.T) {
	assert.True(t, Appointment{Status: StatusPending}.CanReschedule())
	assert.True(t, Appointment{Status: StatusConfirmed}.CanReschedule())
	assert.False(t, Appointment{Status: StatusRescheduled}.CanReschedule())

	assert.True(t, Appointment{Status: StatusRescheduled}.CanCancel())
	assert.False(t, Appointment{Status: StatusNoShow}.CanCancel())

	assert.Equal(t, 60*time.Minute, TypeMedical.DefaultDuration())
	assert.Equal(t, 30*time.Minute, TypeVisaInterview.DefaultDuration())

	a := Appointment{StartsAt: time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), DurationMinutes: 45}
	assert.Equal(t, time.Date(2026, 10, 20, 9, 45, 0, 0, time.UTC), a.EndsAt())
}
