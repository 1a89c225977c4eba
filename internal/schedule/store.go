package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the single shared mutable resource of the scheduling core.
// AvailabilityManager and Scheduler are its only writers; every mutation
// happens inside a per-doctor critical section held by those services.
type Store interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAvailabilityByID(ctx context.Context, id uuid.UUID) (*Availability, error)
	CreateAvailability(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Availability, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, start, end time.Time) (*Availability, error)
	DeleteAvailability(ctx context.Context, id uuid.UUID) error
	// ListAvailability returns the doctor's windows ordered by start time.
	// A nil range means unbounded; otherwise only windows overlapping the
	// half-open range are returned.
	ListAvailability(ctx context.Context, doctorID uuid.UUID, within *Interval) ([]Availability, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error)
	// UpdateAppointmentTimes only applies while the appointment is still
	// confirmed. Check-in and complete bypass the doctor lock, so the time
	// update must itself refuse an appointment whose visit has started.
	UpdateAppointmentTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error)
	// UpdateAppointmentStatus is a compare-and-set: the update only applies
	// while the appointment is still in the `from` status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// CancelAppointment is the cancellation variant of the compare-and-set,
	// recording when and why the appointment was cancelled.
	CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, at time.Time, reason string) (*Appointment, error)

	// ListActiveAppointments returns confirmed and in-progress appointments
	// of the doctor overlapping the range, ordered by start time.
	ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, within Interval) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, within *Interval, limit, offset int) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
