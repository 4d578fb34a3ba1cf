package visa

import (
	"fmt"
	"time"
)

const signOff = "\nBest regards,\nInternational Office"

func createdMail(a Application) (string, func(string) string) {
	return "Visa Application Created", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour visa application has been created.\n\n"+
			"Application Number: %s\nVisa Type: %s\nProgram: %s\n\n"+
			"Next steps:\n1. Complete your medical examination\n2. Submit the required documents\n"+
			"3. Wait for staff review\n"+signOff,
			name, a.Number, a.VisaType, a.ProgramName)
	}
}

func documentsMail(a Application, loc *time.Location) (string, func(string) string) {
	return "Documents Submitted Successfully", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour documents have been submitted.\n\n"+
			"Application Number: %s\nSubmission Date: %s\n\n"+
			"The International Office will review them and let you know the outcome.\n"+signOff,
			name, a.Number, a.DocumentsSubmittedAt.In(loc).Format("02 Jan 2006"))
	}
}

func emgsMail(a Application, loc *time.Location) (string, func(string) string) {
	return "Application Submitted to EMGS", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour visa application has been submitted to EMGS.\n\n"+
			"Application Number: %s\nEMGS Reference: %s\nSubmission Date: %s\n\n"+
			"EMGS processing typically takes 10-14 working days.\n"+signOff,
			name, a.Number, a.EmgsReference, a.EmgsSubmittedAt.In(loc).Format("02 Jan 2006"))
	}
}

func statusMail(a Application, from Status) (string, func(string) string) {
	return "Visa Application Status Update", func(name string) string {
		return fmt.Sprintf("Dear %s,\n\nYour visa application status has been updated.\n\n"+
			"Application Number: %s\nPrevious Status: %s\nCurrent Status: %s\n"+
			"Current Stage: %s\nProgress: %d%%\n"+signOff,
			name, a.Number, from, a.Status, a.CurrentStage, a.Progress())
	}
}
