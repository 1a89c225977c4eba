package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development.
// All methods take a consistent snapshot under one RWMutex, so readers never
// observe a partially applied write.
type MemoryStore struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	availability map[uuid.UUID]Availability
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	nextEventID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		availability: make(map[uuid.UUID]Availability),
		appointments: make(map[uuid.UUID]Appointment),
		nextEventID:  1,
	}
}

var _ Store = (*MemoryStore)(nil)

// PutDoctor inserts or replaces a doctor record. Fixture helper.
func (s *MemoryStore) PutDoctor(d Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
}

// PutPatient inserts or replaces a patient record. Fixture helper.
func (s *MemoryStore) PutPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

// Events returns a copy of the recorded event log, oldest first.
func (s *MemoryStore) Events() []EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EventLog, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemoryStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (s *MemoryStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (s *MemoryStore) GetAvailabilityByID(_ context.Context, id uuid.UUID) (*Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	av, ok := s.availability[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	return &av, nil
}

func (s *MemoryStore) CreateAvailability(_ context.Context, doctorID uuid.UUID, start, end time.Time) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	av := Availability{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.availability[av.ID] = av
	return &av, nil
}

func (s *MemoryStore) UpdateAvailability(_ context.Context, id uuid.UUID, start, end time.Time) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	av, ok := s.availability[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	av.StartTime = start
	av.EndTime = end
	av.UpdatedAt = time.Now()
	s.availability[id] = av
	return &av, nil
}

func (s *MemoryStore) DeleteAvailability(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.availability[id]; !ok {
		return ErrAvailabilityNotFound
	}
	delete(s.availability, id)
	return nil
}

func (s *MemoryStore) ListAvailability(_ context.Context, doctorID uuid.UUID, within *Interval) ([]Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Availability
	for _, av := range s.availability {
		if av.DoctorID != doctorID {
			continue
		}
		if within != nil && !av.Interval().Overlaps(*within) {
			continue
		}
		out = append(out, av)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *MemoryStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &appt, nil
}

func (s *MemoryStore) CreateAppointment(_ context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	appt := Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		StartTime: start,
		EndTime:   end,
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.appointments[appt.ID] = appt
	return &appt, nil
}

func (s *MemoryStore) UpdateAppointmentTimes(_ context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok || appt.Status != StatusConfirmed {
		return nil, ErrAppointmentNotFound
	}
	appt.StartTime = start
	appt.EndTime = end
	appt.UpdatedAt = time.Now()
	s.appointments[id] = appt
	return &appt, nil
}

func (s *MemoryStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = to
	appt.UpdatedAt = time.Now()
	s.appointments[id] = appt
	return &appt, nil
}

func (s *MemoryStore) CancelAppointment(_ context.Context, id uuid.UUID, from AppointmentStatus, at time.Time, reason string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = StatusCancelled
	appt.CancelledAt = &at
	appt.CancelReason = reason
	appt.UpdatedAt = time.Now()
	s.appointments[id] = appt
	return &appt, nil
}

func (s *MemoryStore) ListActiveAppointments(_ context.Context, doctorID uuid.UUID, within Interval) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Appointment
	for _, appt := range s.appointments {
		if appt.DoctorID != doctorID || !appt.Status.Active() {
			continue
		}
		if !appt.Interval().Overlaps(within) {
			continue
		}
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *MemoryStore) ListAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID, within *Interval, limit, offset int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Appointment
	for _, appt := range s.appointments {
		if appt.DoctorID != doctorID {
			continue
		}
		if within != nil && !appt.Interval().Overlaps(*within) {
			continue
		}
		all = append(all, appt)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartTime.Before(all[j].StartTime)
	})
	return page(all, limit, offset), nil
}

func (s *MemoryStore) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Appointment
	for _, appt := range s.appointments {
		if appt.PatientID != patientID {
			continue
		}
		all = append(all, appt)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartTime.Before(all[j].StartTime)
	})
	return page(all, limit, offset), nil
}

func (s *MemoryStore) InsertEvent(_ context.Context, ev EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextEventID
	s.nextEventID++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, ev)
	return nil
}

func page(appts []Appointment, limit, offset int) []Appointment {
	if offset >= len(appts) {
		return nil
	}
	appts = appts[offset:]
	if limit > 0 && limit < len(appts) {
		appts = appts[:limit]
	}
	return appts
}
