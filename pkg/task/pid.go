package task

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
)

// PIDAllocator is the bitmap of spec.md §4.5: one bit per PID in
// [0, MaxProcesses), scanned forward from the last-issued PID with
// wrap-around. PID 0 is reserved and permanently marked used.
type PIDAllocator struct {
	mu         klock.Spinlock
	bits       []uint64
	max        int
	lastIssued int
}

// NewPIDAllocator creates an allocator for PIDs in [0, max).
func NewPIDAllocator(max int) *PIDAllocator {
	a := &PIDAllocator{
		bits: make([]uint64, (max+63)/64),
		max:  max,
	}
	a.markUsedLocked(0) // PID 0 reserved, never issued
	return a
}

func (a *PIDAllocator) wordBit(pid int) (int, uint64) {
	return pid / 64, 1 << uint(pid%64)
}

func (a *PIDAllocator) testLocked(pid int) bool {
	w, b := a.wordBit(pid)
	return a.bits[w]&b != 0
}

func (a *PIDAllocator) markUsedLocked(pid int) {
	w, b := a.wordBit(pid)
	a.bits[w] |= b
}

func (a *PIDAllocator) markFreeLocked(pid int) {
	w, b := a.wordBit(pid)
	a.bits[w] &^= b
}

// Alloc scans forward from the last-issued PID, wrapping around once;
// returning to the starting index without finding a free slot is
// ENOMEM (spec.md §4.5).
func (a *PIDAllocator) Alloc() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.lastIssued
	for i := 1; i <= a.max; i++ {
		pid := (start + i) % a.max
		if pid == 0 {
			continue
		}
		if !a.testLocked(pid) {
			a.markUsedLocked(pid)
			a.lastIssued = pid
			return pid, nil
		}
	}
	return 0, errors.ENOMEM
}

// Free releases pid back to the pool (mark_free).
func (a *PIDAllocator) Free(pid int) {
	if pid <= 0 || pid >= a.max {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markFreeLocked(pid)
}
