package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

type apiEnv struct {
	server    *httptest.Server
	store     *schedule.MemoryStore
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store := schedule.NewMemoryStore()
	locker := schedule.NewLocalLocker()
	clock := schedule.SystemClock()
	log := zap.NewNop()

	doctorID := uuid.New()
	patientID := uuid.New()
	store.PutDoctor(schedule.Doctor{ID: doctorID, Name: "Dr. Akintola"})
	store.PutPatient(schedule.Patient{ID: patientID, Name: "Maya Chen"})

	router := NewRouter(RouterConfig{
		Availability: schedule.NewAvailabilityManager(store, locker, clock, log),
		Slots:        schedule.NewSlotAllocator(store),
		Scheduler:    schedule.NewScheduler(store, locker, clock, log),
		SlotDuration: 30 * time.Minute,
		Log:          log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiEnv{server: server, store: store, doctorID: doctorID, patientID: patientID}
}

// at returns a time on a fixed future day so bookings never trip on "now".
func at(hour, min int) time.Time {
	return time.Date(2027, 3, 2, hour, min, 0, 0, time.UTC)
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *apiEnv) createWindow(t *testing.T, start, end time.Time) AvailabilityResponse {
	t.Helper()
	var av AvailabilityResponse
	status := e.do(t, http.MethodPost, "/doctors/"+e.doctorID.String()+"/availability",
		CreateAvailabilityRequest{StartTime: start, EndTime: end}, &av)
	require.Equal(t, http.StatusCreated, status)
	return av
}

func (e *apiEnv) book(t *testing.T, start, end time.Time) AppointmentResponse {
	t.Helper()
	var appt AppointmentResponse
	status := e.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  e.doctorID.String(),
		PatientID: e.patientID.String(),
		StartTime: start,
		EndTime:   end,
	}, &appt)
	require.Equal(t, http.StatusCreated, status)
	return appt
}

func TestAvailabilityEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	av := env.createWindow(t, at(9, 0), at(12, 0))
	assert.Equal(t, env.doctorID, av.DoctorID)

	var windows []AvailabilityResponse
	status := env.do(t, http.MethodGet, "/doctors/"+env.doctorID.String()+"/availability", nil, &windows)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, windows, 1)
	assert.Equal(t, av.ID, windows[0].ID)

	var updated AvailabilityResponse
	status = env.do(t, http.MethodPut, "/availability/"+av.ID.String(),
		UpdateAvailabilityRequest{StartTime: at(10, 0), EndTime: at(13, 0)}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, at(10, 0), updated.StartTime)

	status = env.do(t, http.MethodDelete, "/availability/"+av.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status = env.do(t, http.MethodDelete, "/availability/"+av.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAvailabilityErrors(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(12, 0))

	var errResp ErrorResponse
	status := env.do(t, http.MethodPost, "/doctors/"+env.doctorID.String()+"/availability",
		CreateAvailabilityRequest{StartTime: at(11, 0), EndTime: at(13, 0)}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "window_overlap", errResp.Error)

	status = env.do(t, http.MethodPost, "/doctors/"+env.doctorID.String()+"/availability",
		CreateAvailabilityRequest{StartTime: at(13, 0), EndTime: at(12, 0)}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_range", errResp.Error)

	status = env.do(t, http.MethodPost, "/doctors/"+uuid.NewString()+"/availability",
		CreateAvailabilityRequest{StartTime: at(9, 0), EndTime: at(12, 0)}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "doctor_not_found", errResp.Error)

	status = env.do(t, http.MethodPost, "/doctors/not-a-uuid/availability",
		CreateAvailabilityRequest{StartTime: at(9, 0), EndTime: at(12, 0)}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_id", errResp.Error)
}

func TestDeleteAvailabilityCascade(t *testing.T) {
	env := newAPIEnv(t)
	av := env.createWindow(t, at(9, 0), at(12, 0))
	appt := env.book(t, at(9, 0), at(9, 30))

	var errResp ErrorResponse
	status := env.do(t, http.MethodDelete, "/availability/"+av.ID.String(), nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "has_active_appointments", errResp.Error)

	status = env.do(t, http.MethodDelete, "/availability/"+av.ID.String()+"?cascade=cancel_active", nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	var got AppointmentResponse
	status = env.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", got.Status)
}

func TestBookAndConflict(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(12, 0))

	appt := env.book(t, at(9, 0), at(9, 30))
	assert.Equal(t, "confirmed", appt.Status)

	var errResp ErrorResponse
	status := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  env.doctorID.String(),
		PatientID: env.patientID.String(),
		StartTime: at(9, 15),
		EndTime:   at(9, 45),
	}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "slot_conflict", errResp.Error)

	status = env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  env.doctorID.String(),
		PatientID: env.patientID.String(),
		StartTime: at(8, 30),
		EndTime:   at(9, 0),
	}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "outside_availability", errResp.Error)
}

func TestBookValidation(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(12, 0))

	var errResp ErrorResponse
	status := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  "nope",
		PatientID: env.patientID.String(),
		StartTime: at(9, 0),
		EndTime:   at(9, 30),
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errResp.Error)

	status = env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  uuid.NewString(),
		PatientID: env.patientID.String(),
		StartTime: at(9, 0),
		EndTime:   at(9, 30),
	}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "doctor_not_found", errResp.Error)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(12, 0))
	appt := env.book(t, at(9, 0), at(9, 30))

	var got AppointmentResponse
	status := env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/checkin", nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "in_progress", got.Status)

	status = env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/complete", nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", got.Status)

	var errResp ErrorResponse
	status = env.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/checkin", nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_status_transition", errResp.Error)
}

func TestRescheduleAndCancelEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(12, 0))
	appt := env.book(t, at(9, 0), at(9, 30))

	var moved AppointmentResponse
	status := env.do(t, http.MethodPatch, "/appointments/"+appt.ID.String(),
		RescheduleAppointmentRequest{StartTime: at(10, 0), EndTime: at(10, 30)}, &moved)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, at(10, 0), moved.StartTime)
	assert.Equal(t, appt.ID, moved.ID)

	var cancelled AppointmentResponse
	status = env.do(t, http.MethodDelete, "/appointments/"+appt.ID.String(),
		CancelAppointmentRequest{Reason: "patient request"}, &cancelled)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "patient request", cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)

	var errResp ErrorResponse
	status = env.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "appointment_not_found", errResp.Error)
}

func TestListSlotsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(10, 30))
	env.book(t, at(9, 0), at(9, 30))

	base := "/doctors/" + env.doctorID.String() + "/slots"

	var slots []SlotResponse
	status := env.do(t, http.MethodGet, base+"?day=2027-03-02", nil, &slots)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, slots, 2)
	assert.Equal(t, at(9, 30), slots[0].StartTime)
	assert.Equal(t, at(10, 0), slots[1].StartTime)

	// Explicit granularity in minutes.
	status = env.do(t, http.MethodGet, base+"?day=2027-03-02&duration=45", nil, &slots)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, slots, 1)
	assert.Equal(t, at(9, 45), slots[0].StartTime)

	var errResp ErrorResponse
	status = env.do(t, http.MethodGet, base+"?day=March+2", nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_day", errResp.Error)
}

func TestListAppointmentsEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.createWindow(t, at(9, 0), at(12, 0))
	env.book(t, at(9, 0), at(9, 30))
	env.book(t, at(10, 0), at(10, 30))

	var appts []AppointmentResponse
	status := env.do(t, http.MethodGet, "/doctors/"+env.doctorID.String()+"/appointments", nil, &appts)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, appts, 2)

	rangeQuery := fmt.Sprintf("?from=%s&to=%s",
		at(8, 0).Format(time.RFC3339), at(9, 45).Format(time.RFC3339))
	status = env.do(t, http.MethodGet, "/doctors/"+env.doctorID.String()+"/appointments"+rangeQuery, nil, &appts)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, appts, 1)
	assert.Equal(t, at(9, 0), appts[0].StartTime)

	status = env.do(t, http.MethodGet, "/patients/"+env.patientID.String()+"/appointments?limit=1&offset=1", nil, &appts)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, appts, 1)
	assert.Equal(t, at(10, 0), appts[0].StartTime)

	var errResp ErrorResponse
	status = env.do(t, http.MethodGet, "/doctors/"+env.doctorID.String()+"/appointments?from=yesterday", nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_range", errResp.Error)
}
