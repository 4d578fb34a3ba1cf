package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/medical"
)

func myMedicalHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exam, err := t.GetOrCreate(r.Context(), callerOf(r).ID)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicalResponse(*exam, time.Now()))
	}
}

func scheduleMedicalHandler(t *medical.Tracker, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleMedicalRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		at, err := slotTime(req.Date, req.Time, loc)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		caller := callerOf(r)
		exam, err := t.ScheduleAppointment(r.Context(), caller.ID, medical.ClinicVisit{
			At:            at,
			ClinicName:    req.ClinicName,
			ClinicAddress: req.ClinicAddress,
			ClinicPhone:   req.ClinicPhone,
		}, caller)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicalResponse(*exam, time.Now()))
	}
}

func listMedicalHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := t.List(r.Context(), medical.Status(r.URL.Query().Get("status")))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		now := time.Now()
		resp := make([]MedicalResponse, 0, len(exams))
		for _, e := range exams {
			resp = append(resp, toMedicalResponse(e, now))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func medicalStatsHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := t.Stats(r.Context())
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func studentMedicalHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exam, err := t.GetByStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicalResponse(*exam, time.Now()))
	}
}

// medicalMutation adapts the staff-only tracker operations that act on one
// case by id.
func medicalMutation(log *zap.Logger, fn func(r *http.Request) (*medical.Examination, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exam, err := fn(r)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicalResponse(*exam, time.Now()))
	}
}

func recordExaminationHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return medicalMutation(log, func(r *http.Request) (*medical.Examination, error) {
		id, err := uuidParam(r, "id")
		if err != nil {
			return nil, err
		}
		var req RecordExaminationRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return t.RecordExamination(r.Context(), id, req.ExaminedAt, callerOf(r))
	})
}

func updateTestsHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return medicalMutation(log, func(r *http.Request) (*medical.Examination, error) {
		id, err := uuidParam(r, "id")
		if err != nil {
			return nil, err
		}
		var req UpdateTestsRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return t.UpdateTests(r.Context(), id, medical.TestUpdate{
			ChestXray: req.ChestXray,
			BloodTest: req.BloodTest,
			UrineTest: req.UrineTest,
		}, callerOf(r))
	})
}

func submitResultHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return medicalMutation(log, func(r *http.Request) (*medical.Examination, error) {
		id, err := uuidParam(r, "id")
		if err != nil {
			return nil, err
		}
		var req SubmitResultRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return t.SubmitResult(r.Context(), id, *req.Passed, req.Notes, callerOf(r))
	})
}

func submitMedicalToEmgsHandler(t *medical.Tracker, log *zap.Logger) http.HandlerFunc {
	return medicalMutation(log, func(r *http.Request) (*medical.Examination, error) {
		id, err := uuidParam(r, "id")
		if err != nil {
			return nil, err
		}
		return t.SubmitToEmgs(r.Context(), id, callerOf(r))
	})
}
