package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	redisclient "github.com/medisched/clinic-scheduling/internal/redis"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// busyLocker simulates a contended doctor lock: acquisition always fails.
type busyLocker struct{}

func (busyLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type testEnv struct {
	store     *MemoryStore
	clock     fakeClock
	manager   *AvailabilityManager
	allocator *SlotAllocator
	scheduler *Scheduler
	doctorID  uuid.UUID
	patientID uuid.UUID
}

// newTestEnv wires the services against the in-memory store with one doctor
// and one patient on file. The clock is pinned to 08:00 on the test day.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := NewMemoryStore()
	locker := NewLocalLocker()
	clock := fakeClock{now: date(8, 0)}
	log := zap.NewNop()

	doctorID := uuid.New()
	patientID := uuid.New()
	store.PutDoctor(Doctor{ID: doctorID, Name: "Dr. Akintola"})
	store.PutPatient(Patient{ID: patientID, Name: "Maya Chen"})

	return &testEnv{
		store:     store,
		clock:     clock,
		manager:   NewAvailabilityManager(store, locker, clock, log),
		allocator: NewSlotAllocator(store),
		scheduler: NewScheduler(store, locker, clock, log),
		doctorID:  doctorID,
		patientID: patientID,
	}
}

// date returns a time on the fixed test day (2026-03-02 UTC).
func date(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func (e *testEnv) mustCreateWindow(t *testing.T, start, end time.Time) *Availability {
	t.Helper()
	av, err := e.manager.Create(context.Background(), e.doctorID, start, end)
	require.NoError(t, err)
	return av
}

func (e *testEnv) mustBook(t *testing.T, start, end time.Time) *Appointment {
	t.Helper()
	appt, err := e.scheduler.Book(context.Background(), e.doctorID, e.patientID, start, end)
	require.NoError(t, err)
	return appt
}
