package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the durable Store backed by Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var av Availability

	err := row.Scan(
		&av.ID,
		&av.DoctorID,
		&av.StartTime,
		&av.EndTime,
		&av.CreatedAt,
		&av.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	return &av, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledAt *time.Time
	var cancelReason *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&cancelledAt,
		&cancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.CancelledAt = cancelledAt
	if cancelReason != nil {
		a.CancelReason = *cancelReason
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const appointmentColumns = `id, doctor_id, patient_id, start_time, end_time, status, cancelled_at, cancel_reason, created_at, updated_at`

// Interface methods

func (s *PgStore) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) GetAvailabilityByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, created_at, updated_at
		FROM availability_windows
		WHERE id = $1
	`, id)
	return scanAvailability(row)
}

func (s *PgStore) CreateAvailability(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Availability, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (id, doctor_id, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, doctor_id, start_time, end_time, created_at, updated_at
	`, id, doctorID, start, end)

	return scanAvailability(row)
}

func (s *PgStore) UpdateAvailability(ctx context.Context, id uuid.UUID, start, end time.Time) (*Availability, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE availability_windows
		SET start_time = $2,
		    end_time   = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, doctor_id, start_time, end_time, created_at, updated_at
	`, id, start, end)

	return scanAvailability(row)
}

func (s *PgStore) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM availability_windows
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (s *PgStore) ListAvailability(ctx context.Context, doctorID uuid.UUID, within *Interval) ([]Availability, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, created_at, updated_at
		FROM availability_windows
		WHERE doctor_id = $1
	`
	args := []any{doctorID}
	if within != nil {
		query += ` AND start_time < $3 AND end_time > $2`
		args = append(args, within.Start, within.End)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		av, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *av)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'confirmed', now(), now())
		RETURNING `+appointmentColumns+`
	`, id, doctorID, patientID, start, end)

	return scanAppointment(row)
}

func (s *PgStore) UpdateAppointmentTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time   = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'confirmed'
		RETURNING `+appointmentColumns+`
	`, id, start, end)

	return scanAppointment(row)
}

func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status     = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (s *PgStore) CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, at time.Time, reason string) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status        = 'cancelled',
		    cancelled_at  = $3,
		    cancel_reason = $4,
		    updated_at    = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, from, at, reason)

	return scanAppointment(row)
}

func (s *PgStore) ListActiveAppointments(ctx context.Context, doctorID uuid.UUID, within Interval) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('confirmed', 'in_progress')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC
	`, doctorID, within.Start, within.End)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PgStore) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, within *Interval, limit, offset int) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
	`
	args := []any{doctorID}
	if within != nil {
		query += ` AND start_time < $3 AND end_time > $2`
		args = append(args, within.Start, within.End)
		query += ` ORDER BY start_time ASC LIMIT $4 OFFSET $5`
	} else {
		query += ` ORDER BY start_time ASC LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PgStore) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time ASC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, availability_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.AvailabilityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
