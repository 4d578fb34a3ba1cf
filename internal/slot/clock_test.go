package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/student-eservices/internal/apperr"
)

func TestParseDateAndClock(t *testing.T) {
	loc := time.FixedZone("MYT", 8*60*60)

	d, err := ParseDate("2026-10-20", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, loc), d)

	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, c)
	assert.Equal(t, time.Date(2026, 10, 20, 9, 30, 0, 0, loc), At(d, c, loc))

	_, err = ParseDate("20/10/2026", loc)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = ParseClock("9.30am")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestKeyIsZoneIndependent(t *testing.T) {
	at := time.Date(2026, 10, 20, 9, 0, 0, 0, time.FixedZone("MYT", 8*60*60))
	a := Key{LocationName: "Clinic-A", StartsAt: at}
	b := Key{LocationName: "Clinic-A", StartsAt: at.UTC()}

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "slot:Clinic-A:2026-10-20T01:00:00Z", a.String())
}

func TestTimeSlotAccepts(t *testing.T) {
	assert.True(t, TimeSlot{}.Accepts("MEDICAL"))
	assert.True(t, TimeSlot{AppointmentType: "MEDICAL"}.Accepts("MEDICAL"))
	assert.False(t, TimeSlot{AppointmentType: "MEDICAL"}.Accepts("VISA_INTERVIEW"))
}
