package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/api"
	"github.com/hackgods/student-eservices/internal/app"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/notify/notifytest"
	redisclient "github.com/hackgods/student-eservices/internal/redis"
	"github.com/hackgods/student-eservices/internal/slot"
	"github.com/hackgods/student-eservices/internal/storage/memory"
)

var (
	campus = time.FixedZone("MYT", 8*60*60)
	now    = time.Date(2026, time.October, 15, 9, 0, 0, 0, campus)
)

type server struct {
	handler http.Handler
	svc     *app.Services
	tokens  *identity.Tokens
}

func newServer(t *testing.T, checks ...api.Check) *server {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	st := app.MemoryStorage(store)
	for _, s := range []identity.StudentRecord{
		{ID: "TP001", FullName: "Aisha Rahman", Email: "aisha@example.edu"},
		{ID: "TP002", FullName: "Wei Chen", Email: "wei@example.edu"},
	} {
		require.NoError(t, st.Students.Upsert(ctx, s))
	}

	svc := app.Build(st, app.Options{
		Location:    campus,
		Locker:      redisclient.NewLocalLocker(),
		Notifier:    &notifytest.Recorder{},
		Log:         zap.NewNop(),
		PhoneRegion: "MY",
		Now:         func() time.Time { return now },
	})

	day := time.Date(2026, time.October, 16, 0, 0, 0, 0, campus)
	_, err := svc.Slots.Generate(ctx, slot.GenerateRequest{
		LocationType: slot.LocationMedicalClinic,
		LocationName: "Clinic-A",
		FromDate:     day,
		ToDate:       day,
		DayStart:     9 * time.Hour,
		DayEnd:       11 * time.Hour,
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)

	tokens := identity.NewTokens("test-secret", time.Hour)
	h := api.NewRouter(api.RouterConfig{
		Slots:        svc.Slots,
		Appointments: svc.Appointments,
		Medical:      svc.Medical,
		Visa:         svc.Visa,
		Tokens:       tokens,
		Log:          zap.NewNop(),
		Checks:       checks,
		CORSOrigins:  []string{"*"},
		Env:          "test",
		Version:      "test",
	})
	return &server{handler: h, svc: svc, tokens: tokens}
}

func (s *server) token(t *testing.T, c identity.Caller) string {
	t.Helper()
	tok, err := s.tokens.Issue(c)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLivenessIsPublic(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadiness(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		checks []api.Check
		code   int
		status string
	}{
		{"all up", []api.Check{{Name: "postgres", Critical: true, Ping: up}}, http.StatusOK, "ok"},
		{"optional down", []api.Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"critical down", []api.Check{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: up}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, tt.checks...)

			rec := s.do(t, http.MethodGet, "/health/ready", "", nil)

			assert.Equal(t, tt.code, rec.Code)
			resp := decodeBody[api.ReadinessResponse](t, rec)
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.checks))
		})
	}
}

func TestAPIRequiresToken(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/slots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/slots", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffRoutesRejectStudents(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, identity.Student("TP001"))

	for _, path := range []string{"/api/v1/staff/appointments", "/api/v1/staff/medical", "/api/v1/staff/visa/stats"} {
		rec := s.do(t, http.MethodGet, path, tok, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestListSlots(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, identity.Student("TP001"))

	rec := s.do(t, http.MethodGet, "/api/v1/slots?location_name=Clinic-A&date=2026-10-16", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	slots := decodeBody[[]api.SlotResponse](t, rec)
	require.Len(t, slots, 4)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "09:30", slots[0].EndTime)
	assert.Equal(t, "2026-10-16", slots[0].Date)
	assert.Equal(t, "10:30", slots[3].StartTime)

	rec = s.do(t, http.MethodGet, "/api/v1/slots?location_type=BOAT", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/slots?limit=-1", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffGeneratesSlots(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, identity.Staff("STAFF01"))

	rec := s.do(t, http.MethodPost, "/api/v1/staff/slots", tok, api.GenerateSlotsRequest{
		LocationType: "INTERNATIONAL_OFFICE",
		LocationName: "Office-1",
		FromDate:     "2026-10-19",
		ToDate:       "2026-10-20",
		StartTime:    "09:00",
		EndTime:      "13:00",
		SlotMinutes:  30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 16, decodeBody[api.GenerateSlotsResponse](t, rec).Created)

	rec = s.do(t, http.MethodPost, "/api/v1/staff/slots", tok, api.GenerateSlotsRequest{
		LocationType: "INTERNATIONAL_OFFICE",
		LocationName: "Office-1",
		FromDate:     "2026-10-19",
		ToDate:       "2026-10-19",
		StartTime:    "13:00",
		EndTime:      "09:00",
		SlotMinutes:  30,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookCancelAndRebook(t *testing.T) {
	s := newServer(t)
	first := s.token(t, identity.Student("TP001"))
	second := s.token(t, identity.Student("TP002"))

	book := api.BookAppointmentRequest{
		Type:         "MEDICAL",
		LocationName: "Clinic-A",
		Date:         "2026-10-16",
		StartTime:    "09:00",
	}

	rec := s.do(t, http.MethodPost, "/api/v1/appointments", first, book)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decodeBody[api.AppointmentResponse](t, rec)
	assert.Equal(t, "APT-2026-00001", appt.Number)
	assert.Equal(t, "TP001", appt.StudentID)
	assert.Equal(t, "PENDING", appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes)

	rec = s.do(t, http.MethodPost, "/api/v1/appointments", second, book)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decodeBody[api.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/cancel", first, api.CancelAppointmentRequest{Reason: "clash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decodeBody[api.AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/v1/appointments", second, book)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/appointments/"+appt.ID.String()+"/history", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]api.EventResponse](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, "APPOINTMENT_BOOKED", events[0].EventType)
	assert.Equal(t, "APPOINTMENT_CANCELLED", events[1].EventType)
}

func TestCancelWithoutBody(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, identity.Student("TP001"))

	rec := s.do(t, http.MethodPost, "/api/v1/appointments", tok, api.BookAppointmentRequest{
		Type: "MEDICAL", LocationName: "Clinic-A", Date: "2026-10-16", StartTime: "09:30",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decodeBody[api.AppointmentResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/cancel", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestBookRejectsBadRequests(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, identity.Student("TP001"))

	tests := []struct {
		name string
		body any
		code int
	}{
		{"missing type", map[string]string{"location_name": "Clinic-A", "date": "2026-10-16", "start_time": "09:00"}, http.StatusBadRequest},
		{"unknown type", map[string]string{"appointment_type": "DENTAL", "location_name": "Clinic-A", "date": "2026-10-16", "start_time": "09:00"}, http.StatusBadRequest},
		{"unknown field", map[string]string{"appointment_type": "MEDICAL", "location_name": "Clinic-A", "date": "2026-10-16", "start_time": "09:00", "slot_id": "x"}, http.StatusBadRequest},
		{"bad date", map[string]string{"appointment_type": "MEDICAL", "location_name": "Clinic-A", "date": "16/10/2026", "start_time": "09:00"}, http.StatusBadRequest},
		{"no such slot", map[string]string{"appointment_type": "MEDICAL", "location_name": "Clinic-A", "date": "2026-10-16", "start_time": "15:00"}, http.StatusNotFound},
		{"other student", map[string]string{"student_id": "TP002", "appointment_type": "MEDICAL", "location_name": "Clinic-A", "date": "2026-10-16", "start_time": "09:00"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/appointments", tok, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, http.MethodPost, "/api/v1/appointments", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentVisibility(t *testing.T) {
	s := newServer(t)
	owner := s.token(t, identity.Student("TP001"))
	other := s.token(t, identity.Student("TP002"))
	staff := s.token(t, identity.Staff("STAFF01"))

	rec := s.do(t, http.MethodPost, "/api/v1/appointments", staff, api.BookAppointmentRequest{
		StudentID: "TP001", Type: "MEDICAL", LocationName: "Clinic-A", Date: "2026-10-16", StartTime: "10:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[api.AppointmentResponse](t, rec).ID.String()

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/appointments/"+id, owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/appointments/"+id, other, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/appointments/"+id+"/history", other, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", owner, nil).Code)

	rec = s.do(t, http.MethodGet, "/api/v1/appointments/me", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.AppointmentResponse](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/appointments/me/upcoming", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]api.AppointmentResponse](t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/staff/appointments?date=2026-10-16&status=PENDING", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.AppointmentResponse](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/staff/appointments?date=2026-10-17", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]api.AppointmentResponse](t, rec))
}

func TestStaffStatusUpdate(t *testing.T) {
	s := newServer(t)
	student := s.token(t, identity.Student("TP001"))
	staff := s.token(t, identity.Staff("STAFF01"))

	rec := s.do(t, http.MethodPost, "/api/v1/appointments", student, api.BookAppointmentRequest{
		Type: "MEDICAL", LocationName: "Clinic-A", Date: "2026-10-16", StartTime: "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[api.AppointmentResponse](t, rec).ID.String()

	rec = s.do(t, http.MethodPost, "/api/v1/appointments/"+id+"/confirm", student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[api.AppointmentResponse](t, rec).Confirmed)

	rec = s.do(t, http.MethodPatch, "/api/v1/staff/appointments/"+id+"/status", staff, api.UpdateStatusRequest{Status: "COMPLETED", Notes: "seen"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[api.AppointmentResponse](t, rec)
	assert.Equal(t, "COMPLETED", done.Status)
	assert.Equal(t, "seen", done.StaffNotes)

	rec = s.do(t, http.MethodPatch, "/api/v1/staff/appointments/"+id+"/status", staff, api.UpdateStatusRequest{Status: "PENDING"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody[api.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/v1/staff/appointments/stats", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["COMPLETED"])
}

func TestRescheduleOverHTTP(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, identity.Student("TP001"))

	rec := s.do(t, http.MethodPost, "/api/v1/appointments", tok, api.BookAppointmentRequest{
		Type: "MEDICAL", LocationName: "Clinic-A", Date: "2026-10-16", StartTime: "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[api.AppointmentResponse](t, rec).ID.String()

	rec = s.do(t, http.MethodPost, "/api/v1/appointments/"+id+"/reschedule", tok, api.RescheduleAppointmentRequest{Date: "2026-10-16", StartTime: "10:30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[api.AppointmentResponse](t, rec)
	assert.Equal(t, 1, moved.RescheduleCount)
	assert.Equal(t, "10:30", moved.StartsAt.In(campus).Format("15:04"))
	require.NotNil(t, moved.OriginalStartsAt)

	rec = s.do(t, http.MethodGet, "/api/v1/slots?location_name=Clinic-A&date=2026-10-16", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var starts []string
	for _, sl := range decodeBody[[]api.SlotResponse](t, rec) {
		starts = append(starts, sl.StartTime)
	}
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, starts)
}

func TestMedicalAndVisaOverHTTP(t *testing.T) {
	s := newServer(t)
	student := s.token(t, identity.Student("TP001"))
	staff := s.token(t, identity.Staff("STAFF01"))

	rec := s.do(t, http.MethodPost, "/api/v1/visa", student, api.CreateVisaRequest{
		PassportNumber: "A12345678",
		Nationality:    "Indonesian",
		ProgramName:    "BSc Computer Science",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app := decodeBody[api.VisaResponse](t, rec)
	assert.Equal(t, "VA-2026-00001", app.Number)
	assert.Equal(t, 5, app.Progress)
	assert.Equal(t, "PENDING", app.MedicalStatus)

	rec = s.do(t, http.MethodPost, "/api/v1/visa", student, api.CreateVisaRequest{
		PassportNumber: "A12345678", Nationality: "Indonesian", ProgramName: "BSc",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decodeBody[api.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/v1/visa/me/documents", student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 20, decodeBody[api.VisaResponse](t, rec).Progress)

	rec = s.do(t, http.MethodPost, "/api/v1/staff/visa/"+app.ID.String()+"/emgs", staff, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/medical/me", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exam := decodeBody[api.MedicalResponse](t, rec)
	assert.Equal(t, "MED-2026-00001", exam.Number)

	rec = s.do(t, http.MethodPost, "/api/v1/medical/me/appointment", student, api.ScheduleMedicalRequest{
		Date: "2026-10-20", Time: "10:00", ClinicName: "Panel Clinic", ClinicPhone: "03-2161 1234",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scheduled := decodeBody[api.MedicalResponse](t, rec)
	assert.Equal(t, "SCHEDULED", scheduled.Status)
	assert.Equal(t, 20, scheduled.Progress)

	yes := true
	rec = s.do(t, http.MethodPatch, "/api/v1/staff/medical/"+exam.ID.String()+"/tests", staff, api.UpdateTestsRequest{
		ChestXray: &yes, BloodTest: &yes, UrineTest: &yes,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "COMPLETED", decodeBody[api.MedicalResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/v1/staff/medical/"+exam.ID.String()+"/result", staff, map[string]any{"notes": "fit"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "passed is required")

	rec = s.do(t, http.MethodPost, "/api/v1/staff/medical/"+exam.ID.String()+"/result", staff, api.SubmitResultRequest{Passed: &yes, Notes: "fit"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PASSED", decodeBody[api.MedicalResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/visa/me", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[api.VisaResponse](t, rec)
	assert.True(t, ready.ReadyForEmgs)
	assert.Equal(t, 30, ready.Progress)

	rec = s.do(t, http.MethodPost, "/api/v1/staff/visa/"+app.ID.String()+"/emgs", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decodeBody[api.VisaResponse](t, rec)
	assert.Equal(t, "EMGS_PROCESSING", submitted.Status)
	assert.NotEmpty(t, submitted.EmgsReference)

	rec = s.do(t, http.MethodPatch, "/api/v1/staff/visa/"+app.ID.String()+"/status", staff, api.UpdateStatusRequest{Status: "EMGS_APPROVED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/visa/me/timeline", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tl := decodeBody[api.TimelineResponse](t, rec)
	assert.Equal(t, "EMGS_APPROVED", tl.Status)
	var titles []string
	for _, ev := range tl.Timeline {
		titles = append(titles, ev.Title)
	}
	assert.Equal(t, []string{
		"Application Created",
		"Documents Submitted",
		"Medical Examination",
		"EMGS Submission",
		"EMGS Approved",
	}, titles)

	rec = s.do(t, http.MethodGet, "/api/v1/staff/medical/students/TP001", staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/staff/visa?status=EMGS_APPROVED", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.VisaResponse](t, rec), 1)
	rec = s.do(t, http.MethodGet, "/api/v1/staff/visa?status=NOPE", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
