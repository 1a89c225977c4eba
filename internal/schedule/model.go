package schedule

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
)

// Active reports whether the appointment still occupies its slot.
// Completed and cancelled appointments are historical records only.
func (s AppointmentStatus) Active() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

// State transitions:
//
//	confirmed   → in_progress (check-in)
//	confirmed   → cancelled
//	in_progress → completed
//	in_progress → cancelled
//	completed, cancelled: terminal
func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusConfirmed:  {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
		StatusCompleted:  {},
		StatusCancelled:  {},
	}

	for _, next := range allowed[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CascadePolicy controls what happens to active appointments contained in an
// availability window being deleted.
type CascadePolicy string

const (
	// CascadeNone rejects the deletion while active appointments remain.
	CascadeNone CascadePolicy = "none"
	// CascadeCancelActive cancels contained active appointments first.
	CascadeCancelActive CascadePolicy = "cancel_active"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Availability is one contiguous open window during which a doctor accepts
// bookings. Windows of the same doctor never overlap.
type Availability struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Availability) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	StartTime    time.Time
	EndTime      time.Time
	Status       AppointmentStatus
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// Slot is a derived bookable interval. Slots are computed on demand from
// availability minus active appointments and are never stored.
type Slot struct {
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

type EventLog struct {
	ID             int64
	EventType      string
	AppointmentID  *uuid.UUID
	AvailabilityID *uuid.UUID
	Payload        []byte
	CreatedAt      time.Time
}
