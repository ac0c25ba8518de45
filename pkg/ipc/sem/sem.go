// Package sem implements System V semaphore sets (spec.md §4.9).
package sem

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/task"
	"github.com/eduos/kernel/pkg/waitqueue"
)

// Op is one element of a semop() batch.
type Op struct {
	Num   int // index into the set
	Val   int16
	Flags ftok.OpFlags
}

// Set is one semaphore set: an array of values plus the wait queue
// blocked semop callers retry against. SEM_UNDO is not supported (see
// DESIGN.md).
type Set struct {
	ID     int
	Key    ftok.Key
	mu     klock.Spinlock
	values []int16
	waitq  waitqueue.Head
}

func newSet(id int, key ftok.Key, nsems int) *Set {
	return &Set{ID: id, Key: key, values: make([]int16, nsems)}
}

// Len reports the number of semaphores in the set.
func (s *Set) Len() int { return len(s.values) }

// Value returns semaphore num's current value.
func (s *Set) Value(num int) (int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num < 0 || num >= len(s.values) {
		return 0, errors.EINVAL
	}
	return s.values[num], nil
}

// SetValue sets semaphore num's value directly (semctl SETVAL) and
// wakes anyone blocked on the set, since a direct set can satisfy a
// pending wait.
func (s *Set) SetValue(num int, val int16) error {
	s.mu.Lock()
	if num < 0 || num >= len(s.values) {
		s.mu.Unlock()
		return errors.EINVAL
	}
	s.values[num] = val
	s.mu.Unlock()
	s.waitq.WakeAll()
	return nil
}

// tryApply checks whether every op in ops can apply to a snapshot of
// values without blocking, returning the index of the first op that
// cannot and false, or (-1, true) with scratch holding the would-be
// result. Per spec.md §4.9, wait-for-zero (Val == 0) requires the
// current value to already be zero; Val < 0 requires enough headroom
// not to go negative; Val > 0 always applies.
func tryApply(values []int16, ops []Op) (scratch []int16, blockedAt int) {
	scratch = append([]int16{}, values...)
	for i, op := range ops {
		switch {
		case op.Val == 0:
			if scratch[op.Num] != 0 {
				return nil, i
			}
		case int32(scratch[op.Num])+int32(op.Val) < 0:
			return nil, i
		default:
			scratch[op.Num] += op.Val
		}
	}
	return scratch, -1
}

// Semop applies ops atomically with respect to other Semop callers on
// the same Set: either every op in the batch applies, or none does and
// the whole batch retries, per spec.md §4.9's ordering guarantee. A
// block is interruptible: a pending, unblocked signal delivered to t
// cancels the wait and returns EINTR rather than retrying forever
// (spec.md §4.7 "Cancellation").
func (s *Set) Semop(t *task.Task, ops []Op) error {
	if len(ops) == 0 {
		return errors.EINVAL
	}
	for _, op := range ops {
		if op.Num < 0 {
			return errors.EINVAL
		}
	}

	for {
		s.mu.Lock()
		for _, op := range ops {
			if op.Num >= len(s.values) {
				s.mu.Unlock()
				return errors.EINVAL
			}
		}
		scratch, blockedAt := tryApply(s.values, ops)
		if blockedAt < 0 {
			copy(s.values, scratch)
			s.mu.Unlock()
			s.waitq.WakeAll()
			return nil
		}
		if ops[blockedAt].Flags&ftok.IPCNoWait != 0 {
			s.mu.Unlock()
			return errors.EAGAIN
		}
		entry := waitqueue.NewEntry(int64(t.PID), false)
		s.waitq.Add(entry)
		s.mu.Unlock()
		if err := t.WaitInterruptible(&s.waitq, entry); err != nil {
			return err
		}
	}
}
