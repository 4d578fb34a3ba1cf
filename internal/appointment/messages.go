package appointment

import (
	"fmt"
	"strings"
	"time"
)

const signOff = "\nBest regards,\nInternational Office"

type mailer struct {
	loc *time.Location
}

func (m mailer) date(t time.Time) string { return t.In(m.loc).Format("02 Jan 2006") }
func (m mailer) clock(t time.Time) string { return t.In(m.loc).Format("03:04 PM") }

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func (m mailer) booked(a Appointment) (string, func(string) string) {
	return "Appointment Booked - " + string(a.Type), func(name string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Dear %s,\n\nYour appointment has been booked.\n\n", name)
		fmt.Fprintf(&b, "Number: %s\nType: %s\nLocation: %s\nRoom: %s\nDate: %s\nTime: %s\nDuration: %d minutes\n\n",
			a.Number, a.Type, a.LocationName, orNA(a.RoomNumber), m.date(a.StartsAt), m.clock(a.StartsAt), a.DurationMinutes)
		if a.Purpose != "" {
			fmt.Fprintf(&b, "Purpose: %s\n\n", a.Purpose)
		}
		b.WriteString("Please confirm the appointment in the student portal. A reminder is sent the day before.\n")
		b.WriteString(signOff)
		return b.String()
	}
}

func (m mailer) reminder(a Appointment) (string, func(string) string) {
	return "Reminder: Appointment Tomorrow", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nThis is a reminder of your appointment tomorrow.\n\n"+
			"Number: %s\nType: %s\nLocation: %s\nRoom: %s\nDate: %s\nTime: %s\n\n"+
			"Please arrive 10 minutes early.\n"+signOff,
			name, a.Number, a.Type, a.LocationName, orNA(a.RoomNumber), m.date(a.StartsAt), m.clock(a.StartsAt))
	}
}

func (m mailer) cancelled(a Appointment) (string, func(string) string) {
	return "Appointment Cancelled", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour appointment %s on %s at %s has been cancelled.\n\nReason: %s\n\n"+
			"You can book a new appointment in the student portal.\n"+signOff,
			name, a.Number, m.date(a.StartsAt), m.clock(a.StartsAt), orNA(a.CancellationReason))
	}
}

func (m mailer) rescheduled(a Appointment) (string, func(string) string) {
	return "Appointment Rescheduled", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour appointment %s has been rescheduled.\n\n"+
			"New Date: %s\nNew Time: %s\nLocation: %s\nRoom: %s\n"+signOff,
			name, a.Number, m.date(a.StartsAt), m.clock(a.StartsAt), a.LocationName, orNA(a.RoomNumber))
	}
}

func (m mailer) statusChanged(a Appointment, from Status) (string, func(string) string) {
	return "Appointment Status Updated", func(name string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Dear %s,\n\nThe status of appointment %s on %s has changed from %s to %s.\n\n",
			name, a.Number, m.date(a.StartsAt), from, a.Status)
		if a.StaffNotes != "" {
			fmt.Fprintf(&b, "Notes: %s\n\n", a.StaffNotes)
		}
		b.WriteString(signOff)
		return b.String()
	}
}
