package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medisched/clinic-scheduling/internal/schedule"
)

type CreateAvailabilityRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type UpdateAvailabilityRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type BookAppointmentRequest struct {
	DoctorID  string    `json:"doctor_id" validate:"required,uuid4"`
	PatientID string    `json:"patient_id" validate:"required,uuid4"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type AvailabilityResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type SlotResponse struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       string     `json:"status"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAvailabilityResponse(av *schedule.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ID:        av.ID,
		DoctorID:  av.DoctorID,
		StartTime: av.StartTime,
		EndTime:   av.EndTime,
	}
}

func toAppointmentResponse(appt *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           appt.ID,
		DoctorID:     appt.DoctorID,
		PatientID:    appt.PatientID,
		StartTime:    appt.StartTime,
		EndTime:      appt.EndTime,
		Status:       string(appt.Status),
		CancelledAt:  appt.CancelledAt,
		CancelReason: appt.CancelReason,
	}
}
