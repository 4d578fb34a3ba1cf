package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/visa"
)

func myVisaHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := t.GetOrCreate(r.Context(), callerOf(r).ID)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisaResponse(*app))
	}
}

func createVisaHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateVisaRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		caller := callerOf(r)
		app, err := t.Create(r.Context(), caller.ID, visa.ProgramDetails{
			VisaType:         req.VisaType,
			PassportNumber:   req.PassportNumber,
			PassportExpiry:   req.PassportExpiry,
			Nationality:      req.Nationality,
			ProgramName:      req.ProgramName,
			Faculty:          req.Faculty,
			ProgramStartDate: req.ProgramStartDate,
		}, caller)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVisaResponse(*app))
	}
}

func submitDocumentsHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerOf(r)
		app, err := t.SubmitDocuments(r.Context(), caller.ID, caller)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisaResponse(*app))
	}
}

func visaTimelineHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := callerOf(r).ID
		app, err := t.GetByStudent(r.Context(), studentID)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		events, err := t.Timeline(r.Context(), studentID)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, TimelineResponse{
			Number:       app.Number,
			Status:       string(app.Status),
			CurrentStage: app.CurrentStage,
			Progress:     app.Progress(),
			Timeline:     events,
		})
	}
}

func listVisaHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := t.List(r.Context(), visa.Status(r.URL.Query().Get("status")))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		resp := make([]VisaResponse, 0, len(apps))
		for _, a := range apps {
			resp = append(resp, toVisaResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func visaStatsHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := t.Stats(r.Context())
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func submitVisaToEmgsHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		app, err := t.SubmitToEmgs(r.Context(), id, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisaResponse(*app))
	}
}

func updateVisaStatusHandler(t *visa.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		var req UpdateStatusRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		app, err := t.UpdateStatus(r.Context(), id, visa.Status(req.Status), req.Notes, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisaResponse(*app))
	}
}
