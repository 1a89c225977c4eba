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

// Scheduler is the single authority for creating, rescheduling and cancelling
// appointments. After every successful operation the doctor's active
// appointments are pairwise disjoint and each lies inside one of the doctor's
// availability windows.
type Scheduler struct {
	store  Store
	locker redisclient.Locker
	clock  Clock
	log    *zap.Logger
}

func NewScheduler(store Store, locker redisclient.Locker, clock Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		locker: locker,
		clock:  clock,
		log:    log,
	}
}

// Book reserves [start, end) for the patient with the doctor. The containment
// and conflict checks plus the insert run as one critical section per doctor,
// so two concurrent bookings cannot both pass the conflict check.
func (s *Scheduler) Book(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return nil, ErrInvalidRange
	}

	if _, err := s.store.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.store.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var booked *Appointment

	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		if err := s.checkPlacement(lockCtx, doctorID, iv, uuid.Nil); err != nil {
			return err
		}

		appt, err := s.store.CreateAppointment(lockCtx, doctorID, patientID, start, end)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		booked = appt

		recordEvent(lockCtx, s.store, s.log, EventAppointmentBooked, &appt.ID, nil, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
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

	s.log.Info("appointment booked",
		zap.String("appointment_id", booked.ID.String()),
		zap.String("doctor_id", doctorID.String()),
		zap.String("patient_id", patientID.String()),
		zap.Time("start", start),
	)
	return booked, nil
}

// Reschedule moves a confirmed appointment to a new interval in place: same
// record, same ID, so the audit trail shows one appointment whose time
// changed. The conflict check excludes the appointment's own interval.
func (s *Scheduler) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*Appointment, error) {
	iv := Interval{Start: newStart, End: newEnd}
	if !iv.Valid() {
		return nil, ErrInvalidRange
	}

	current, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var moved *Appointment

	err = s.locker.WithDoctorLock(ctx, current.DoctorID, func(lockCtx context.Context) error {
		appt, err := s.store.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		// An in-progress or finished visit cannot move.
		if appt.Status != StatusConfirmed {
			return ErrInvalidStatusTransition
		}

		if err := s.checkPlacement(lockCtx, appt.DoctorID, iv, appt.ID); err != nil {
			return err
		}

		updated, err := s.store.UpdateAppointmentTimes(lockCtx, id, newStart, newEnd)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Check-in and complete do not take the doctor lock, so the
				// visit may have started between the status check and here.
				return ErrInvalidStatusTransition
			}
			return err
		}
		moved = updated

		recordEvent(lockCtx, s.store, s.log, EventAppointmentRescheduled, &updated.ID, nil, map[string]any{
			"start_time": newStart,
			"end_time":   newEnd,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.log.Info("appointment rescheduled",
		zap.String("appointment_id", id.String()),
		zap.Time("start", newStart),
	)
	return moved, nil
}

// Cancel releases the appointment's interval for rebooking. Allowed from
// confirmed and in-progress; the record is kept for history.
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	current, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var cancelled *Appointment

	err = s.locker.WithDoctorLock(ctx, current.DoctorID, func(lockCtx context.Context) error {
		appt, err := s.store.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(StatusCancelled) {
			return ErrInvalidStatusTransition
		}

		updated, err := s.store.CancelAppointment(lockCtx, id, appt.Status, s.clock.Now(), reason)
		if err != nil {
			return err
		}
		cancelled = updated

		recordEvent(lockCtx, s.store, s.log, EventAppointmentCancelled, &updated.ID, nil, map[string]any{
			"reason": reason,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.log.Info("appointment cancelled",
		zap.String("appointment_id", id.String()),
		zap.String("reason", reason),
	)
	return cancelled, nil
}

// CheckIn marks a confirmed appointment as in progress. Early check-in is
// allowed but logged.
func (s *Scheduler) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(StatusInProgress) {
		return nil, ErrInvalidStatusTransition
	}

	if now := s.clock.Now(); now.Before(appt.StartTime) {
		s.log.Warn("check-in before appointment start",
			zap.String("appointment_id", id.String()),
			zap.Time("start", appt.StartTime),
			zap.Time("now", now),
		)
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, id, StatusConfirmed, StatusInProgress)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the compare-and-set race: someone moved the status first.
			return nil, ErrInvalidStatusTransition
		}
		return nil, err
	}

	recordEvent(ctx, s.store, s.log, EventAppointmentCheckedIn, &updated.ID, nil, map[string]any{})
	return updated, nil
}

// Complete closes out an in-progress appointment.
func (s *Scheduler) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(StatusCompleted) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, id, StatusInProgress, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, err
	}

	recordEvent(ctx, s.store, s.log, EventAppointmentCompleted, &updated.ID, nil, map[string]any{})
	return updated, nil
}

func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetAppointmentByID(ctx, id)
}

func (s *Scheduler) ListByDoctor(ctx context.Context, doctorID uuid.UUID, within *Interval, limit, offset int) ([]Appointment, error) {
	if within != nil && !within.Valid() {
		return nil, ErrInvalidRange
	}
	limit, offset = clampPaging(limit, offset)
	return s.store.ListAppointmentsByDoctor(ctx, doctorID, within, limit, offset)
}

func (s *Scheduler) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPaging(limit, offset)
	return s.store.ListAppointmentsByPatient(ctx, patientID, limit, offset)
}

// checkPlacement enforces the two booking invariants for an interval: full
// containment in one availability window and no overlap with an active
// appointment. exclude skips the appointment being rescheduled.
// Must be called inside the doctor's critical section.
func (s *Scheduler) checkPlacement(ctx context.Context, doctorID uuid.UUID, iv Interval, exclude uuid.UUID) error {
	windows, err := s.store.ListAvailability(ctx, doctorID, &iv)
	if err != nil {
		return fmt.Errorf("list availability: %w", err)
	}
	contained := false
	for _, win := range windows {
		if win.Interval().Contains(iv) {
			contained = true
			break
		}
	}
	if !contained {
		return ErrOutsideAvailability
	}

	busy, err := s.store.ListActiveAppointments(ctx, doctorID, iv)
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}
	for _, other := range busy {
		if other.ID != exclude {
			return ErrSlotConflict
		}
	}
	return nil
}

func clampPaging(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
