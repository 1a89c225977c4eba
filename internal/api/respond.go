package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the scheduling error taxonomy onto HTTP statuses.
// Conflicts (409) are safe to retry with a different slot; bad requests (400)
// are structural and need different input.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, schedule.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrAvailabilityNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrWindowOverlap):
		writeError(w, http.StatusConflict, "window_overlap", err.Error())
	case errors.Is(err, schedule.ErrOutsideAvailability):
		writeError(w, http.StatusConflict, "outside_availability", err.Error())
	case errors.Is(err, schedule.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, schedule.ErrHasActiveAppointments):
		writeError(w, http.StatusConflict, "has_active_appointments", err.Error())
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
