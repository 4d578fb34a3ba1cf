package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/slot"
	"github.com/hackgods/student-eservices/internal/visa"
)

type RouterConfig struct {
	Slots        *slot.Pool
	Appointments *appointment.Service
	Medical      *medical.Tracker
	Visa         *visa.Tracker
	Tokens       *identity.Tokens
	Log          *zap.Logger
	Checks       []Check
	CORSOrigins  []string
	RateLimitRPS int // per client IP; zero disables limiting
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	loc := cfg.Slots.Location()

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Tokens.Middleware(log))

		r.Get("/slots", listSlotsHandler(cfg.Slots, log))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Appointments, loc, log))
			r.Get("/me", myAppointmentsHandler(cfg.Appointments, log))
			r.Get("/me/upcoming", upcomingAppointmentsHandler(cfg.Appointments, log))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments, log))
			r.Get("/{id}/history", appointmentHistoryHandler(cfg.Appointments, log))
			r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Appointments, log))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, log))
			r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments, loc, log))
		})

		r.Route("/medical", func(r chi.Router) {
			r.Get("/me", myMedicalHandler(cfg.Medical, log))
			r.Post("/me/appointment", scheduleMedicalHandler(cfg.Medical, loc, log))
		})

		r.Route("/visa", func(r chi.Router) {
			r.Post("/", createVisaHandler(cfg.Visa, log))
			r.Get("/me", myVisaHandler(cfg.Visa, log))
			r.Post("/me/documents", submitDocumentsHandler(cfg.Visa, log))
			r.Get("/me/timeline", visaTimelineHandler(cfg.Visa, log))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(identity.RequireStaff)

			r.Post("/slots", generateSlotsHandler(cfg.Slots, log))

			r.Get("/appointments", listAppointmentsHandler(cfg.Appointments, loc, log))
			r.Get("/appointments/stats", appointmentStatsHandler(cfg.Appointments, log))
			r.Patch("/appointments/{id}/status", updateAppointmentStatusHandler(cfg.Appointments, log))

			r.Get("/medical", listMedicalHandler(cfg.Medical, log))
			r.Get("/medical/stats", medicalStatsHandler(cfg.Medical, log))
			r.Get("/medical/students/{studentID}", studentMedicalHandler(cfg.Medical, log))
			r.Post("/medical/{id}/examination", recordExaminationHandler(cfg.Medical, log))
			r.Patch("/medical/{id}/tests", updateTestsHandler(cfg.Medical, log))
			r.Post("/medical/{id}/result", submitResultHandler(cfg.Medical, log))
			r.Post("/medical/{id}/emgs", submitMedicalToEmgsHandler(cfg.Medical, log))

			r.Get("/visa", listVisaHandler(cfg.Visa, log))
			r.Get("/visa/stats", visaStatsHandler(cfg.Visa, log))
			r.Post("/visa/{id}/emgs", submitVisaToEmgsHandler(cfg.Visa, log))
			r.Patch("/visa/{id}/status", updateVisaStatusHandler(cfg.Visa, log))
		})
	})

	return r
}
