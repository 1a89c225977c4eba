package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

var validate = validator.New()

type handlers struct {
	availability *schedule.AvailabilityManager
	slots        *schedule.SlotAllocator
	scheduler    *schedule.Scheduler
	slotDuration time.Duration
}

func (h *handlers) listAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := parseUUIDParam(w, r, "id", "doctor id")
	if !ok {
		return
	}

	within, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}

	windows, err := h.availability.ListForDoctor(r.Context(), doctorID, within)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]AvailabilityResponse, 0, len(windows))
	for i := range windows {
		resp = append(resp, toAvailabilityResponse(&windows[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := parseUUIDParam(w, r, "id", "doctor id")
	if !ok {
		return
	}

	var req CreateAvailabilityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	av, err := h.availability.Create(r.Context(), doctorID, req.StartTime, req.EndTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAvailabilityResponse(av))
}

func (h *handlers) updateAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "availability id")
	if !ok {
		return
	}

	var req UpdateAvailabilityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	av, err := h.availability.Update(r.Context(), id, req.StartTime, req.EndTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityResponse(av))
}

func (h *handlers) deleteAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "availability id")
	if !ok {
		return
	}

	cascade := schedule.CascadeNone
	if r.URL.Query().Get("cascade") == "cancel_active" {
		cascade = schedule.CascadeCancelActive
	}

	if err := h.availability.Delete(r.Context(), id, cascade); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := parseUUIDParam(w, r, "id", "doctor id")
	if !ok {
		return
	}

	dayStr := r.URL.Query().Get("day")
	day, err := time.Parse("2006-01-02", dayStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
		return
	}

	duration := h.slotDuration
	if v := r.URL.Query().Get("duration"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil {
			duration = time.Duration(mins) * time.Minute
		} else if d, err := time.ParseDuration(v); err == nil {
			duration = d
		} else {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be minutes or a Go duration")
			return
		}
	}

	slots, err := h.slots.FreeSlots(r.Context(), doctorID, day, duration)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, SlotResponse{DoctorID: s.DoctorID, StartTime: s.StartTime, EndTime: s.EndTime})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	doctorID, _ := uuid.Parse(req.DoctorID)
	patientID, _ := uuid.Parse(req.PatientID)

	appt, err := h.scheduler.Book(r.Context(), doctorID, patientID, req.StartTime, req.EndTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "appointment id")
	if !ok {
		return
	}

	appt, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "appointment id")
	if !ok {
		return
	}

	var req RescheduleAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	appt, err := h.scheduler.Reschedule(r.Context(), id, req.StartTime, req.EndTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "appointment id")
	if !ok {
		return
	}

	// Body is optional on cancel.
	var req CancelAppointmentRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	appt, err := h.scheduler.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) checkInAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "appointment id")
	if !ok {
		return
	}

	appt, err := h.scheduler.CheckIn(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "appointment id")
	if !ok {
		return
	}

	appt, err := h.scheduler.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) listDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := parseUUIDParam(w, r, "id", "doctor id")
	if !ok {
		return
	}

	within, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}
	limit, offset := parsePaging(r)

	appts, err := h.scheduler.ListByDoctor(r.Context(), doctorID, within, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeAppointmentList(w, appts)
}

func (h *handlers) listPatientAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parseUUIDParam(w, r, "id", "patient id")
	if !ok {
		return
	}

	limit, offset := parsePaging(r)

	appts, err := h.scheduler.ListByPatient(r.Context(), patientID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeAppointmentList(w, appts)
}

// Request parsing helpers

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", label+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseRangeQuery reads optional from/to RFC3339 query params. Both or
// neither must be given.
func parseRangeQuery(w http.ResponseWriter, r *http.Request) (*schedule.Interval, bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" && toStr == "" {
		return nil, true
	}

	from, errFrom := time.Parse(time.RFC3339, fromStr)
	to, errTo := time.Parse(time.RFC3339, toStr)
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", "from and to must both be RFC3339 timestamps")
		return nil, false
	}

	return &schedule.Interval{Start: from, End: to}, true
}

func parsePaging(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func writeAppointmentList(w http.ResponseWriter, appts []schedule.Appointment) {
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
