// Package msgqueue implements System V message queues (spec.md §4.9).
package msgqueue

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/task"
	"github.com/eduos/kernel/pkg/waitqueue"
)

// Message is one queued message: a type tag used for msgrcv filtering
// and an opaque payload.
type Message struct {
	Type int64
	Data []byte
}

// Queue is one message queue: a FIFO-within-type-class list of
// messages plus the wait queue blocked msgrcv callers retry against.
type Queue struct {
	ID       int
	Key      ftok.Key
	MaxBytes int

	mu       klock.Spinlock
	messages []Message
	curBytes int
	waitq    waitqueue.Head
}

func newQueue(id int, key ftok.Key, maxBytes int) *Queue {
	return &Queue{ID: id, Key: key, MaxBytes: maxBytes}
}

// Send appends msg (msgsnd). IPC_NOWAIT returns EAGAIN if the queue is
// at capacity rather than blocking for space; blocking-for-space is
// otherwise supported via the same retry-on-wake shape as Receive. A
// block is interruptible: a pending, unblocked signal delivered to t
// cancels the wait and returns EINTR (spec.md §4.7 "Cancellation").
func (q *Queue) Send(t *task.Task, msg Message, flags ftok.OpFlags) error {
	for {
		q.mu.Lock()
		if q.curBytes+len(msg.Data) <= q.MaxBytes {
			q.messages = append(q.messages, msg)
			q.curBytes += len(msg.Data)
			q.mu.Unlock()
			q.waitq.WakeAll()
			return nil
		}
		if flags&ftok.IPCNoWait != 0 {
			q.mu.Unlock()
			return errors.EAGAIN
		}
		entry := waitqueue.NewEntry(int64(t.PID), false)
		q.waitq.Add(entry)
		q.mu.Unlock()
		if err := t.WaitInterruptible(&q.waitq, entry); err != nil {
			return err
		}
	}
}

// matchIndex returns the index of the first message matching wantType
// per spec.md §4.9: 0 = any, >0 = exact match, <0 = smallest type
// <= |wantType|. FIFO within a type class.
func matchIndex(messages []Message, wantType int64) int {
	switch {
	case wantType == 0:
		if len(messages) == 0 {
			return -1
		}
		return 0
	case wantType > 0:
		for i, m := range messages {
			if m.Type == wantType {
				return i
			}
		}
		return -1
	default:
		limit := -wantType
		best := -1
		for i, m := range messages {
			if m.Type <= limit && (best < 0 || m.Type < messages[best].Type) {
				best = i
			}
		}
		return best
	}
}

// Receive implements msgrcv(type): dequeues the first message matching
// wantType's filter, blocking (unless IPC_NOWAIT) until one arrives,
// per spec.md §4.9. IPC_NOWAIT with nothing matching returns ENOMSG.
// A block is interruptible the same way Send's is: a pending,
// unblocked signal delivered to t returns EINTR.
func (q *Queue) Receive(t *task.Task, wantType int64, flags ftok.OpFlags) (Message, error) {
	for {
		q.mu.Lock()
		if i := matchIndex(q.messages, wantType); i >= 0 {
			msg := q.messages[i]
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			q.curBytes -= len(msg.Data)
			q.mu.Unlock()
			return msg, nil
		}
		if flags&ftok.IPCNoWait != 0 {
			q.mu.Unlock()
			return Message{}, errors.ENOMSG
		}
		entry := waitqueue.NewEntry(int64(t.PID), false)
		q.waitq.Add(entry)
		q.mu.Unlock()
		if err := t.WaitInterruptible(&q.waitq, entry); err != nil {
			return Message{}, err
		}
	}
}
