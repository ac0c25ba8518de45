// Package alarm implements the alarm(2)/nanosleep(2) deferred wake-up
// path referenced by spec.md §6's syscall surface: schedule a task's
// PID to be re-queued after a delay, and raise SIGALRM (or simply wake
// the sleeper, for nanosleep) when the delay elapses. Each pending
// delay is backed by a k8s.io/client-go delaying workqueue rather than
// a bespoke timer-wheel, the same way the teacher's intake worker
// defers retries: AddAfter schedules the wake, Get blocks the drain
// goroutine until it's due.
package alarm

import (
	"time"

	"k8s.io/client-go/util/workqueue"

	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/task"
)

// wake is one scheduled alarm: the target task and what to do when it
// fires. nanosleep callers set Raise to false (no signal, the wait
// queue entry itself carries the wake) since nanosleep's wake is a
// plain timeout, not an asynchronous signal.
type wake struct {
	target *task.Task
	raise  bool
}

// Clock schedules deferred per-task wake-ups. One Clock serves the
// whole kernel; a single drain goroutine delivers wakes in the order
// their deadlines elapse.
type Clock struct {
	queue workqueue.TypedDelayingInterface[*wake]
	done  chan struct{}
}

// NewClock starts a Clock's drain loop and returns it ready to serve
// alarm/nanosleep requests. Stop shuts it down.
func NewClock() *Clock {
	c := &Clock{
		queue: workqueue.NewTypedDelayingQueue[*wake](),
		done:  make(chan struct{}),
	}
	go c.drain()
	return c
}

// Stop shuts down the drain loop, abandoning any still-pending alarms.
func (c *Clock) Stop() {
	c.queue.ShutDown()
	<-c.done
}

func (c *Clock) drain() {
	defer close(c.done)
	for {
		w, shutdown := c.queue.Get()
		if shutdown {
			return
		}
		if w.raise {
			w.target.Signals.Raise(signal.SIGALRM)
		}
		c.queue.Done(w)
	}
}

// Alarm implements alarm(seconds): (re)schedules t to receive SIGALRM
// after d. A previous pending alarm for t is not canceled here (spec.md
// doesn't give alarm() a cancellation contract beyond alarm(0), which
// callers implement by never calling Alarm at all); duplicate entries
// simply both fire.
func (c *Clock) Alarm(t *task.Task, d time.Duration) {
	c.queue.AddAfter(&wake{target: t, raise: true}, d)
}

// NanosleepEntry is a single-use handle a nanosleep handler blocks on;
// Wait returns once d has elapsed.
type NanosleepEntry struct {
	fired chan struct{}
}

// Wait blocks until the scheduled duration elapses.
func (e *NanosleepEntry) Wait() { <-e.fired }

// Fired reports, without blocking, whether the scheduled duration has
// already elapsed. Used by callers that need to interleave waiting
// with other checks (e.g. a pending signal) rather than blocking
// outright in Wait.
func (e *NanosleepEntry) Fired() bool {
	select {
	case <-e.fired:
		return true
	default:
		return false
	}
}

// Sleep schedules a plain timeout wake (no signal) for nanosleep(2)
// and returns a handle the caller blocks on.
func (c *Clock) Sleep(d time.Duration) *NanosleepEntry {
	e := &NanosleepEntry{fired: make(chan struct{})}
	time.AfterFunc(d, func() { close(e.fired) })
	return e
}
