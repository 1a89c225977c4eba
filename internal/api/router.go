package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Availability *schedule.AvailabilityManager
	Slots        *schedule.SlotAllocator
	Scheduler    *schedule.Scheduler
	SlotDuration time.Duration
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          *zap.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	if cfg.PgPool != nil && cfg.Redis != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	h := &handlers{
		availability: cfg.Availability,
		slots:        cfg.Slots,
		scheduler:    cfg.Scheduler,
		slotDuration: cfg.SlotDuration,
	}

	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/availability", h.listAvailability)
		r.Post("/availability", h.createAvailability)
		r.Get("/slots", h.listSlots)
		r.Get("/appointments", h.listDoctorAppointments)
	})

	r.Put("/availability/{id}", h.updateAvailability)
	r.Delete("/availability/{id}", h.deleteAvailability)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.bookAppointment)
		r.Get("/{id}", h.getAppointment)
		r.Patch("/{id}", h.rescheduleAppointment)
		r.Delete("/{id}", h.cancelAppointment)
		r.Post("/{id}/checkin", h.checkInAppointment)
		r.Post("/{id}/complete", h.completeAppointment)
	})

	r.Get("/patients/{id}/appointments", h.listPatientAppointments)

	return r
}
