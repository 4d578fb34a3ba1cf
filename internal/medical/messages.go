package medical

import (
	"fmt"
	"time"
)

const signOff = "\nBest regards,\nInternational Office"

func scheduledMail(e Examination, loc *time.Location) (string, func(string) string) {
	return "Medical Appointment Confirmed", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour medical examination appointment is confirmed.\n\n"+
			"Date & Time: %s\nClinic: %s\nAddress: %s\nPhone: %s\n\n"+
			"Please bring your passport, student ID and offer letter.\n"+signOff,
			name, e.AppointmentAt.In(loc).Format("02 Jan 2006, 03:04 PM"),
			e.ClinicName, e.ClinicAddress, e.ClinicPhone)
	}
}

func passedMail(e Examination, loc *time.Location) (string, func(string) string) {
	return "Medical Examination Passed - Congratulations!", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nCongratulations, you have passed your medical examination.\n\n"+
			"Examination Number: %s\nValid Until: %s\n\n"+
			"Your medical clearance will be submitted to EMGS.\n"+signOff,
			name, e.Number, e.ExpiresAt.In(loc).Format("02 Jan 2006"))
	}
}

func failedMail(e Examination) (string, func(string) string) {
	return "Medical Examination - Retest Required", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour medical examination requires further attention.\n\n"+
			"Notes: %s\n\nPlease contact the International Office for next steps.\n"+signOff,
			name, e.ResultNotes)
	}
}

func emgsMail(e Examination, loc *time.Location) (string, func(string) string) {
	return "Medical Report Submitted to EMGS", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour medical report has been submitted to EMGS.\n\n"+
			"EMGS Reference: %s\nSubmission Date: %s\n\n"+
			"You will be notified once EMGS approval is received.\n"+signOff,
			name, e.EmgsReference, e.EmgsSubmittedAt.In(loc).Format("02 Jan 2006"))
	}
}
