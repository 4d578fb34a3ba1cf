package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/slot"
)

const maxSlotsPerPage = 500

// listSlotsHandler serves GET /slots?location_name=&location_type=&date=&days=&limit=
func listSlotsHandler(pool *slot.Pool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		loc := pool.Location()

		f := slot.Filter{
			LocationName: q.Get("location_name"),
			LocationType: slot.LocationType(q.Get("location_type")),
		}
		switch f.LocationType {
		case "", slot.LocationMedicalClinic, slot.LocationInternationalOffice:
		default:
			writeDomainError(w, r, log, apperr.Validationf("unknown location_type %q", f.LocationType))
			return
		}
		if raw := q.Get("date"); raw != "" {
			d, err := slot.ParseDate(raw, loc)
			if err != nil {
				writeDomainError(w, r, log, err)
				return
			}
			f.Date = d
		}

		days, err := intParam(q, "days", 0, 60)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		f.LookaheadDays = days

		limit, err := intParam(q, "limit", 100, maxSlotsPerPage)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		slots, err := pool.CollectAvailable(r.Context(), f, limit)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s, loc))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func generateSlotsHandler(pool *slot.Pool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSlotsRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		loc := pool.Location()
		gen := slot.GenerateRequest{
			LocationType:    slot.LocationType(req.LocationType),
			LocationName:    req.LocationName,
			RoomNumber:      req.RoomNumber,
			StaffID:         req.StaffID,
			AppointmentType: req.AppointmentType,
			Notes:           req.Notes,
			SlotDuration:    time.Duration(req.SlotMinutes) * time.Minute,
			Capacity:        req.Capacity,
		}

		var err error
		if gen.FromDate, err = slot.ParseDate(req.FromDate, loc); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		if gen.ToDate, err = slot.ParseDate(req.ToDate, loc); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		if gen.DayStart, err = slot.ParseClock(req.StartTime); err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		if gen.DayEnd, err = slot.ParseClock(req.EndTime); err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		created, err := pool.Generate(r.Context(), gen)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{Created: created})
	}
}

// slotTime resolves a campus date and clock pair to an instant.
func slotTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := slot.ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	c, err := slot.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return slot.At(d, c, loc), nil
}

// intParam parses an optional non-negative query integer capped at max.
func intParam(q url.Values, name string, def, max int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validationf("%s must be a non-negative integer", name)
	}
	if n > max {
		return 0, apperr.Validationf("%s must be at most %d", name, max)
	}
	return n, nil
}
