package schedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventWindowCreated          = "AVAILABILITY_CREATED"
	EventWindowUpdated          = "AVAILABILITY_UPDATED"
	EventWindowDeleted          = "AVAILABILITY_DELETED"
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

// recordEvent appends an audit row for a state change. Event logging is best
// effort: a failed insert is logged, never surfaced to the caller.
func recordEvent(ctx context.Context, store Store, log *zap.Logger, eventType string, appointmentID, availabilityID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:      eventType,
		AppointmentID:  appointmentID,
		AvailabilityID: availabilityID,
		Payload:        data,
		CreatedAt:      time.Now(),
	}

	if err := store.InsertEvent(ctx, ev); err != nil {
		log.Warn("insert event log", zap.String("event_type", eventType), zap.Error(err))
	}
}
