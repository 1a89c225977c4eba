package schedule

import (
	"context"
	"sync"

	"github.com/google/uuid"

	redisclient "github.com/medisched/clinic-scheduling/internal/redis"
)

// LocalLocker serializes per-doctor mutations with in-process mutexes.
// Used by tests and single-instance deployments; multi-instance deployments
// use the Redis locker instead.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

var _ redisclient.Locker = (*LocalLocker)(nil)

func (l *LocalLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
