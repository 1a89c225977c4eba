package schedule

import "errors"

var (
	ErrInvalidRange    = errors.New("start time must be before end time")
	ErrInvalidDuration = errors.New("slot duration must be positive")

	ErrWindowOverlap         = errors.New("availability window overlaps an existing window")
	ErrOutsideAvailability   = errors.New("appointment is not covered by any availability window")
	ErrSlotConflict          = errors.New("appointment conflicts with an existing appointment")
	ErrHasActiveAppointments = errors.New("availability window still covers active appointments")

	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")

	// ErrScheduleBusy means another writer holds the doctor's schedule lock.
	// Safe for the caller to retry.
	ErrScheduleBusy = errors.New("doctor schedule is being modified, please retry")

	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAvailabilityNotFound = errors.New("availability window not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)
