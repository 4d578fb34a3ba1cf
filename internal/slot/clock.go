package slot

import (
	"fmt"
	"time"

	"github.com/hackgods/student-eservices/internal/apperr"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperr.Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock parses HH:MM as an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, apperr.Validationf("invalid time %q, expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// At combines a calendar date and a clock offset in loc.
func At(date time.Time, clock time.Duration, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(clock)
}

// Midnight truncates t to the start of its calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	return At(t, 0, loc)
}

// FormatClock renders a slot start in loc as HH:MM.
func FormatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ClockLayout)
}

func validateRange(req GenerateRequest) error {
	switch {
	case req.LocationName == "":
		return apperr.Validation("location name is required")
	case req.SlotDuration <= 0:
		return apperr.Validationf("slot duration must be positive, got %s", req.SlotDuration)
	case req.DayEnd <= req.DayStart:
		return apperr.Validationf("time range %s-%s is empty", clockString(req.DayStart), clockString(req.DayEnd))
	case req.DayEnd > 24*time.Hour:
		return apperr.Validation("time range must end by midnight")
	case req.ToDate.Before(req.FromDate):
		return apperr.Validation("date range end is before its start")
	case req.Capacity < 0:
		return apperr.Validation("capacity must not be negative")
	}
	return nil
}

func clockString(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
