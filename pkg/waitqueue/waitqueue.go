// Package waitqueue implements the sleep/wake primitive of spec.md §4.7,
// used by IPC, waitpid, periodic wait, and I/O. A Head is a spinlock plus
// a linked list of entries; each Entry binds one task to the queue via a
// channel-based wake signal and an Exclusive flag for thundering-herd
// avoidance. Orchestrating a sleep (setting task state, invoking the
// scheduler) is the caller's job — Head only owns membership and wake-up,
// so this package stays a leaf with no dependency on pkg/task or
// pkg/sched and therefore cannot cycle back to them.
package waitqueue

import (
	"container/list"

	"github.com/eduos/kernel/pkg/klock"
)

// Entry binds a task (identified by an opaque id) to a Head.
type Entry struct {
	TaskID    int64
	Exclusive bool

	woken chan struct{}
	elem  *list.Element // set once queued, nil otherwise
	head  *Head
}

// NewEntry creates an entry ready to be queued on a Head.
func NewEntry(taskID int64, exclusive bool) *Entry {
	return &Entry{TaskID: taskID, Exclusive: exclusive, woken: make(chan struct{}, 1)}
}

// Wait blocks the calling goroutine until the entry is woken (by Wake,
// WakeAll, or Remove+manual signal) or the entry is removed without a
// wake (caller canceled, e.g. on a signal).
func (e *Entry) Wait() {
	<-e.woken
}

// Woken reports whether a wake has already been posted, without
// blocking.
func (e *Entry) Woken() bool {
	select {
	case <-e.woken:
		e.woken <- struct{}{}
		return true
	default:
		return false
	}
}

// Head is a wait-queue head: a spinlock-protected list of entries.
// Invariant (spec.md §3): a task appears on at most one wait queue at a
// time; callers are responsible for not double-adding the same Entry.
type Head struct {
	mu      klock.Spinlock
	waiters list.List
}

// Add queues e on the head. Safe to call from the task that is about to
// sleep, immediately before invoking the scheduler.
func (h *Head) Add(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.elem = h.waiters.PushBack(e)
	e.head = h
}

// Remove takes e off the head without waking it, used when a sleeper is
// canceled by a signal rather than woken normally.
func (h *Head) Remove(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.elem != nil && e.head == h {
		h.waiters.Remove(e.elem)
		e.elem = nil
	}
}

// Wake wakes the first waiter (FIFO), removing it from the queue, and
// reports whether a waiter was woken. Used for condition variables where
// only one side of a resource change (e.g. one freed semaphore unit)
// should be handed to exactly one sleeper.
func (h *Head) Wake() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	front := h.waiters.Front()
	if front == nil {
		return false
	}
	e := front.Value.(*Entry)
	h.waiters.Remove(front)
	e.elem = nil
	e.woken <- struct{}{}
	return true
}

// WakeAll wakes every non-exclusive waiter, plus exactly one exclusive
// waiter (spec.md §4.7's thundering-herd avoidance: exclusive entries are
// woken one at a time; non-exclusive entries are all woken).
func (h *Head) WakeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	var next *list.Element
	exclusiveWoken := false
	for el := h.waiters.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*Entry)
		if e.Exclusive {
			if exclusiveWoken {
				continue
			}
			exclusiveWoken = true
		}
		h.waiters.Remove(el)
		e.elem = nil
		e.woken <- struct{}{}
	}
}

// Len reports the number of entries currently queued.
func (h *Head) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waiters.Len()
}
