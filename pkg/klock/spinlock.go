// Package klock implements the kernel's two interrupt-safe exclusion
// primitives: Spinlock for interrupt-context critical sections and Mutex
// for task-context ownership with a sleep-queue contention path.
//
// Per spec.md §4.1 / DESIGN NOTES §9, this uses Go's native atomics
// (acquire/release semantics) rather than hand-rolled inline assembly;
// runtime.Gosched is the CPU-pause hint for the spin body.
package klock

import (
	"runtime"
	"sync/atomic"
)

const (
	free uint32 = 0
	busy uint32 = 1
)

// Spinlock is a busy-wait mutual-exclusion lock safe to take from
// interrupt context. It never blocks the caller on a channel or a
// scheduler sleep; it only spins. Callers that cannot hold a Spinlock
// across a sleep must not sleep while holding it.
type Spinlock struct {
	state atomic.Uint32
}

// Lock spins until the lock is acquired, emitting a CPU-pause hint
// between attempts and re-reading the lock word with acquire semantics
// so the compiler cannot hoist the read out of the loop.
func (s *Spinlock) Lock() {
	for !s.state.CompareAndSwap(free, busy) {
		for s.state.Load() == busy {
			runtime.Gosched()
		}
	}
}

// TryLock makes a single acquisition attempt and reports whether it
// succeeded.
func (s *Spinlock) TryLock() bool {
	return s.state.CompareAndSwap(free, busy)
}

// Unlock release-stores the lock back to free. Unlocking an already-free
// spinlock is a developer error and panics, matching the "double-free is
// fatal" contract the rest of the kernel uses for misuse of exclusive
// resources.
func (s *Spinlock) Unlock() {
	if !s.state.CompareAndSwap(busy, free) {
		panic("klock: unlock of unlocked spinlock")
	}
}
