package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/slot"
)

// callerOf returns the principal stored by the token middleware.
func callerOf(r *http.Request) identity.Caller {
	c, _ := identity.FromContext(r.Context())
	return c
}

func bookAppointmentHandler(svc *appointment.Service, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		startsAt, err := slotTime(req.Date, req.StartTime, loc)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		caller := callerOf(r)
		studentID := req.StudentID
		if studentID == "" {
			studentID = caller.ID
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			StudentID:       studentID,
			Type:            appointment.Type(req.Type),
			LocationName:    req.LocationName,
			StartsAt:        startsAt,
			LocationAddress: req.LocationAddress,
			LocationPhone:   req.LocationPhone,
			Purpose:         req.Purpose,
			Notes:           req.Notes,
		}, caller)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func myAppointmentsHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := appointment.Status(r.URL.Query().Get("status"))
		appts, err := svc.ListForStudent(r.Context(), callerOf(r).ID, status)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func upcomingAppointmentsHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.Upcoming(r.Context(), callerOf(r).ID)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func getAppointmentHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		appt, err := svc.Get(r.Context(), id, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func confirmAppointmentHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		appt, err := svc.Confirm(r.Context(), id, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		var req CancelAppointmentRequest
		// the reason is optional, so is the body
		if r.ContentLength != 0 {
			if err := decode(r, &req); err != nil {
				writeDomainError(w, r, log, err)
				return
			}
		}
		appt, err := svc.Cancel(r.Context(), id, req.Reason, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		var req RescheduleAppointmentRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		startsAt, err := slotTime(req.Date, req.StartTime, loc)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		appt, err := svc.Reschedule(r.Context(), id, startsAt, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func appointmentHistoryHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		// Get applies the ownership check
		if _, err := svc.Get(r.Context(), id, callerOf(r)); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		events, err := svc.History(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		resp := make([]EventResponse, 0, len(events))
		for _, ev := range events {
			er := EventResponse{EventType: ev.EventType, Actor: ev.Actor, CreatedAt: ev.CreatedAt}
			if len(ev.Payload) > 0 {
				er.Payload = json.RawMessage(ev.Payload)
			}
			resp = append(resp, er)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// listAppointmentsHandler serves the staff listing:
// GET /staff/appointments?status=&type=&staff=&date=
func listAppointmentsHandler(svc *appointment.Service, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := appointment.ListFilter{AssignedStaff: q.Get("staff")}

		if raw := q.Get("status"); raw != "" {
			st, err := appointment.ParseStatus(raw)
			if err != nil {
				writeDomainError(w, r, log, err)
				return
			}
			f.Status = st
		}
		if raw := q.Get("type"); raw != "" {
			t, err := appointment.ParseType(raw)
			if err != nil {
				writeDomainError(w, r, log, err)
				return
			}
			f.Type = t
		}
		if raw := q.Get("date"); raw != "" {
			d, err := slot.ParseDate(raw, loc)
			if err != nil {
				writeDomainError(w, r, log, err)
				return
			}
			from, to := svc.Day(d)
			f.From, f.To = &from, &to
		}

		appts, err := svc.List(r.Context(), f)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func updateAppointmentStatusHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
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
		appt, err := svc.UpdateStatus(r.Context(), id, appointment.Status(req.Status), req.Notes, callerOf(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func appointmentStatsHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Stats(r.Context())
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
