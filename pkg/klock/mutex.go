package klock

import (
	"sync/atomic"

	"github.com/eduos/kernel/pkg/errors"
)

// Mutex is a task-context exclusion lock with an owning task id. It must
// never be used from interrupt context. The contention path blocks the
// calling goroutine on an internal one-slot channel, which plays the role
// of the wait queue spec.md §4.1 describes: acquire is exactly a receive
// from that channel, release is exactly a send, so a blocked acquirer is
// woken in FIFO order without spinning.
type Mutex struct {
	gate  chan struct{}
	owner atomic.Int64 // task id of current holder, 0 when unlocked
}

// NewMutex returns a ready-to-use, unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{gate: make(chan struct{}, 1)}
	m.gate <- struct{}{}
	return m
}

// Lock blocks the calling task until the mutex is acquired. Locking a
// mutex the calling task already owns is undefined behavior per spec and
// is reported here as a developer-error panic rather than deadlocking
// silently.
func (m *Mutex) Lock(taskID int64) {
	if m.owner.Load() == taskID && taskID != 0 {
		panic("klock: mutex re-locked by its own owner")
	}
	<-m.gate
	m.owner.Store(taskID)
}

// TryLock attempts to acquire without blocking.
func (m *Mutex) TryLock(taskID int64) bool {
	select {
	case <-m.gate:
		m.owner.Store(taskID)
		return true
	default:
		return false
	}
}

// Unlock releases the mutex. Unlocking a mutex not owned by taskID returns
// EPERM rather than panicking, since it can be triggered by a buggy caller
// passing the wrong id rather than corrupted kernel state.
func (m *Mutex) Unlock(taskID int64) error {
	if owner := m.owner.Load(); owner != taskID {
		return errors.EPERM
	}
	m.owner.Store(0)
	select {
	case m.gate <- struct{}{}:
		return nil
	default:
		// Gate already has its token: the mutex was not actually locked.
		panic("klock: unlock of unlocked mutex")
	}
}

// Owner returns the task id currently holding the mutex, or 0 if free.
func (m *Mutex) Owner() int64 {
	return m.owner.Load()
}
