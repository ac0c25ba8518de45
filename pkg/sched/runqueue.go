package sched

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/task"
	"github.com/eduos/kernel/pkg/waitqueue"
)

// RunQueue is the policy-agnostic core of spec.md §4.6: the set of
// known tasks, the currently running one, the tick counter, and the
// set of admitted periodic tasks used for admission control. Selection
// runs on every tick and on every voluntary sleep; only the short
// critical sections around runqueue manipulation mask interrupts (the
// Spinlock), never the policy body itself.
type RunQueue struct {
	mu     klock.Spinlock
	policy Policy

	tasks    []*task.Task // every task known to the scheduler
	current  *task.Task
	tick     uint64
	periodic []*task.Task // admitted periodic tasks

	tickWake waitqueue.Head // woken on every Tick, for WaitPeriod
}

// New creates a runqueue driven by policy.
func New(policy Policy) *RunQueue {
	return &RunQueue{policy: policy}
}

// NumActive reports the number of tasks known to the scheduler that
// are not zombies.
func (rq *RunQueue) NumActive() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	n := 0
	for _, t := range rq.tasks {
		if t.State() != task.Zombie {
			n++
		}
	}
	return n
}

// NumPeriodic reports the number of admitted periodic tasks.
func (rq *RunQueue) NumPeriodic() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return len(rq.periodic)
}

// Enqueue adds t to the scheduler's known-task set (spec.md §4.5's
// "enqueue the child" step of fork).
func (rq *RunQueue) Enqueue(t *task.Task) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	rq.tasks = append(rq.tasks, t)
}

// dropZombiesLocked removes zombie tasks from the runqueue, per
// spec.md §4.6: "Zombies are dequeued during the next invocation of
// the scheduler."
func (rq *RunQueue) dropZombiesLocked() {
	live := rq.tasks[:0]
	for _, t := range rq.tasks {
		if t.State() != task.Zombie {
			live = append(live, t)
		}
	}
	rq.tasks = live
}

// Current returns the task currently selected to run, or nil.
func (rq *RunQueue) Current() *task.Task {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.current
}

// Resched runs one selection pass: drop zombies, collect the runnable
// subset (State == Running, used here as "runnable" since this
// simulation has no separate on-CPU bit), ask the policy, and perform
// the context switch bookkeeping of spec.md §4.6 (the page-directory
// switch itself belongs to pkg/mm/paging and is out of this package's
// scope; Resched only updates rq.current).
func (rq *RunQueue) Resched() *task.Task {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	rq.dropZombiesLocked()
	var runnable []*task.Task
	for _, t := range rq.tasks {
		if t.State() == task.Running {
			runnable = append(runnable, t)
		}
	}
	rq.current = rq.policy.Pick(runnable)
	return rq.current
}

// Tick advances the tick counter (driven by the timer IRQ, spec.md
// §4.6) and wakes every task blocked in WaitPeriod so each can
// re-check whether its next period has arrived.
func (rq *RunQueue) Tick() uint64 {
	rq.mu.Lock()
	rq.tick++
	t := rq.tick
	rq.mu.Unlock()
	rq.tickWake.WakeAll()
	return t
}

// CurrentTick returns the tick counter's current value.
func (rq *RunQueue) CurrentTick() uint64 {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.tick
}

// WaitPeriod implements the periodic-task lifecycle of spec.md §4.6. A
// task runs as an ordinary process until its first WaitPeriod call,
// which runs the policy's admission test: failure returns
// ENOTSCHEDULABLE and the task stays un-admitted (still an ordinary
// process); success marks it admitted and returns immediately without
// sleeping, having recorded when its first period ends. Every
// subsequent call blocks until next_period, then marks the task
// executed.
func (rq *RunQueue) WaitPeriod(t *task.Task) error {
	rq.mu.Lock()
	if !t.Sched.Admitted {
		if !rq.policy.Admit(rq.periodic, t) {
			rq.mu.Unlock()
			return errors.ENOTSCHEDULABLE
		}
		t.Sched.Admitted = true
		t.Sched.NextPeriod = rq.tick + t.Sched.Period
		rq.periodic = append(rq.periodic, t)
		rq.mu.Unlock()
		return nil
	}
	rq.mu.Unlock()

	for {
		rq.mu.Lock()
		if rq.tick >= t.Sched.NextPeriod {
			t.Sched.NextPeriod += t.Sched.Period
			t.Sched.Executed = true
			rq.mu.Unlock()
			return nil
		}
		entry := waitqueue.NewEntry(int64(t.PID), false)
		rq.tickWake.Add(entry)
		rq.mu.Unlock()
		entry.Wait()
	}
}
