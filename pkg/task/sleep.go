package task

import (
	"time"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/waitqueue"
)

// signalPollInterval is how often an interruptible sleep rechecks for
// a newly-deliverable signal. A real kernel wakes a sleeper the
// instant Raise() makes a signal pending; this simulation's Raise has
// no channel back to a sleeping goroutine, so a short fixed-interval
// poll stands in for that notification path.
const signalPollInterval = time.Millisecond

// WaitInterruptible blocks the calling goroutine on entry, which the
// caller must already have queued on head, until one of:
//   - entry is woken normally (returns nil)
//   - a pending, unblocked signal becomes deliverable to t (dequeues
//     entry and returns EINTR, per spec.md §4.7 "Cancellation")
//
// t's state is Interruptible for the duration and restored to Running
// on return.
func (t *Task) WaitInterruptible(head *waitqueue.Head, entry *waitqueue.Entry) error {
	t.SetState(Interruptible)
	defer t.SetState(Running)

	ticker := time.NewTicker(signalPollInterval)
	defer ticker.Stop()
	for {
		if entry.Woken() {
			return nil
		}
		if t.Signals != nil {
			if _, ok := t.Signals.Deliverable(); ok {
				head.Remove(entry)
				return errors.EINTR
			}
		}
		<-ticker.C
	}
}
