package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotAllocator derives the bookable slots for a doctor on a given day.
// It reads availability and active appointments and never writes anything.
type SlotAllocator struct {
	store Store
}

func NewSlotAllocator(store Store) *SlotAllocator {
	return &SlotAllocator{store: store}
}

// FreeSlots returns the free slots of duration slotDuration for the doctor on
// the day containing `day` (midnight to midnight in day's location).
//
// Windows are walked in start-time order; within a window, candidates step
// forward from the window start in slotDuration increments. A candidate is
// emitted when it fits inside the window and touches no active appointment.
// Callers present the result directly in time-slot pickers, so the
// chronological order is part of the contract.
func (a *SlotAllocator) FreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time, slotDuration time.Duration) ([]Slot, error) {
	if slotDuration <= 0 {
		return nil, ErrInvalidDuration
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	dayRange := Interval{Start: dayStart, End: dayEnd}

	windows, err := a.store.ListAvailability(ctx, doctorID, &dayRange)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	if len(windows) == 0 {
		return nil, nil
	}

	busy, err := a.store.ListActiveAppointments(ctx, doctorID, dayRange)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}

	var slots []Slot
	for _, win := range windows {
		for t := win.StartTime; !t.Add(slotDuration).After(win.EndTime); t = t.Add(slotDuration) {
			candidate := Interval{Start: t, End: t.Add(slotDuration)}
			if overlapsAny(candidate, busy) {
				continue
			}
			slots = append(slots, Slot{
				DoctorID:  doctorID,
				StartTime: candidate.Start,
				EndTime:   candidate.End,
			})
		}
	}
	return slots, nil
}

func overlapsAny(candidate Interval, appts []Appointment) bool {
	for _, appt := range appts {
		if candidate.Overlaps(appt.Interval()) {
			return true
		}
	}
	return false
}
