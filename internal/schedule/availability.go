package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/medisched/clinic-scheduling/internal/redis"
)

// AvailabilityManager owns a doctor's open time windows. It is the only
// writer of Availability records and keeps the windows of one doctor
// pairwise disjoint.
type AvailabilityManager struct {
	store  Store
	locker redisclient.Locker
	clock  Clock
	log    *zap.Logger
}

func NewAvailabilityManager(store Store, locker redisclient.Locker, clock Clock, log *zap.Logger) *AvailabilityManager {
	return &AvailabilityManager{
		store:  store,
		locker: locker,
		clock:  clock,
		log:    log,
	}
}

// Create opens a new availability window for the doctor. The window must not
// overlap any of the doctor's existing windows.
func (m *AvailabilityManager) Create(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Availability, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return nil, ErrInvalidRange
	}

	if _, err := m.store.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *Availability

	err := m.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		existing, err := m.store.ListAvailability(lockCtx, doctorID, &iv)
		if err != nil {
			return fmt.Errorf("check window overlap: %w", err)
		}
		if len(existing) > 0 {
			return ErrWindowOverlap
		}

		av, err := m.store.CreateAvailability(lockCtx, doctorID, start, end)
		if err != nil {
			return fmt.Errorf("create availability: %w", err)
		}
		created = av

		recordEvent(lockCtx, m.store, m.log, EventWindowCreated, nil, &av.ID, map[string]any{
			"doctor_id":  doctorID.String(),
			"start_time": start,
			"end_time":   end,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	m.log.Info("availability window created",
		zap.String("availability_id", created.ID.String()),
		zap.String("doctor_id", doctorID.String()),
		zap.Time("start", start),
		zap.Time("end", end),
	)
	return created, nil
}

// Update shifts an existing window. The overlap check excludes the window
// itself, and a shrink that would orphan an active appointment is rejected.
func (m *AvailabilityManager) Update(ctx context.Context, id uuid.UUID, start, end time.Time) (*Availability, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return nil, ErrInvalidRange
	}

	current, err := m.store.GetAvailabilityByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Availability

	err = m.locker.WithDoctorLock(ctx, current.DoctorID, func(lockCtx context.Context) error {
		// Reload inside the lock: the window may have moved since the
		// unguarded read above.
		win, err := m.store.GetAvailabilityByID(lockCtx, id)
		if err != nil {
			return err
		}

		neighbors, err := m.store.ListAvailability(lockCtx, win.DoctorID, &iv)
		if err != nil {
			return fmt.Errorf("check window overlap: %w", err)
		}
		for _, other := range neighbors {
			if other.ID != win.ID {
				return ErrWindowOverlap
			}
		}

		// Active appointments contained in the old window must remain
		// contained after the shift.
		active, err := m.store.ListActiveAppointments(lockCtx, win.DoctorID, win.Interval())
		if err != nil {
			return fmt.Errorf("check active appointments: %w", err)
		}
		for _, appt := range active {
			if !iv.Contains(appt.Interval()) {
				return ErrHasActiveAppointments
			}
		}

		av, err := m.store.UpdateAvailability(lockCtx, id, start, end)
		if err != nil {
			return err
		}
		updated = av

		recordEvent(lockCtx, m.store, m.log, EventWindowUpdated, nil, &av.ID, map[string]any{
			"doctor_id":  win.DoctorID.String(),
			"start_time": start,
			"end_time":   end,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return updated, nil
}

// Delete removes a window. With CascadeNone the deletion fails while active
// appointments are contained in the window; with CascadeCancelActive those
// appointments are cancelled first.
func (m *AvailabilityManager) Delete(ctx context.Context, id uuid.UUID, cascade CascadePolicy) error {
	current, err := m.store.GetAvailabilityByID(ctx, id)
	if err != nil {
		return err
	}

	err = m.locker.WithDoctorLock(ctx, current.DoctorID, func(lockCtx context.Context) error {
		win, err := m.store.GetAvailabilityByID(lockCtx, id)
		if err != nil {
			return err
		}

		// Windows never overlap, so any active appointment intersecting this
		// window is contained in it.
		active, err := m.store.ListActiveAppointments(lockCtx, win.DoctorID, win.Interval())
		if err != nil {
			return fmt.Errorf("check active appointments: %w", err)
		}

		if len(active) > 0 {
			if cascade != CascadeCancelActive {
				return ErrHasActiveAppointments
			}
			now := m.clock.Now()
			for _, appt := range active {
				cancelled, err := m.store.CancelAppointment(lockCtx, appt.ID, appt.Status, now, "availability window removed")
				if err != nil {
					return fmt.Errorf("cascade cancel appointment %s: %w", appt.ID, err)
				}
				recordEvent(lockCtx, m.store, m.log, EventAppointmentCancelled, &cancelled.ID, &win.ID, map[string]any{
					"reason": "availability window removed",
				})
			}
		}

		if err := m.store.DeleteAvailability(lockCtx, id); err != nil {
			return err
		}

		recordEvent(lockCtx, m.store, m.log, EventWindowDeleted, nil, &win.ID, map[string]any{
			"doctor_id": win.DoctorID.String(),
			"cascade":   string(cascade),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrScheduleBusy
		}
		return err
	}

	m.log.Info("availability window deleted",
		zap.String("availability_id", id.String()),
		zap.String("cascade", string(cascade)),
	)
	return nil
}

// ListForDoctor returns the doctor's windows ordered by start time. A nil
// range means all windows; otherwise only windows intersecting the range.
func (m *AvailabilityManager) ListForDoctor(ctx context.Context, doctorID uuid.UUID, within *Interval) ([]Availability, error) {
	if within != nil && !within.Valid() {
		return nil, ErrInvalidRange
	}
	windows, err := m.store.ListAvailability(ctx, doctorID, within)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return windows, nil
}
