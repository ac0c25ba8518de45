package sched

import (
	"math"
	"sort"

	"github.com/eduos/kernel/pkg/task"
)

// RateMonotonic assigns static priority inversely proportional to
// period: the task with the shortest period always preempts longer
// ones. Pick just sorts by period since priority is derived, not
// stored (spec.md §4.6).
type RateMonotonic struct{}

func (RateMonotonic) Name() string { return "rate-monotonic" }

func (RateMonotonic) Pick(runnable []*task.Task) *task.Task {
	if len(runnable) == 0 {
		return nil
	}
	best := runnable[0]
	for _, t := range runnable[1:] {
		if rmPeriod(t) < rmPeriod(best) {
			best = t
		}
	}
	return best
}

func rmPeriod(t *task.Task) uint64 {
	if t.Sched.IsPeriodic && t.Sched.Period > 0 {
		return t.Sched.Period
	}
	return math.MaxUint64 // non-periodic tasks never preempt a periodic one
}

// Admit applies the Liu & Layland utilization bound first; if that's
// ambiguous (utilization exceeds the bound but might still be
// schedulable), it falls back to per-task response-time analysis, per
// spec.md §4.6.
func (RateMonotonic) Admit(admitted []*task.Task, candidate *task.Task) bool {
	set := append(append([]*task.Task{}, admitted...), candidate)

	n := float64(len(set))
	util := 0.0
	for _, t := range set {
		util += float64(t.Sched.WCET) / float64(t.Sched.Period)
	}
	bound := n * (math.Pow(2, 1/n) - 1)
	if util <= bound {
		return true
	}
	return rmResponseTimeFeasible(set)
}

// rmResponseTimeFeasible runs the classic iterative response-time
// recurrence for every task in set, assuming rate-monotonic priority
// order (shortest period = highest priority): R = C_i +
// sum_{j higher prio} ceil(R/T_j)*C_j, iterated to a fixed point or
// until R exceeds the deadline.
func rmResponseTimeFeasible(set []*task.Task) bool {
	ordered := append([]*task.Task{}, set...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Sched.Period < ordered[j].Sched.Period
	})

	for i, t := range ordered {
		deadline := t.Sched.Deadline
		if deadline == 0 {
			deadline = t.Sched.Period
		}
		higher := ordered[:i]

		r := t.Sched.WCET
		for {
			next := t.Sched.WCET
			for _, h := range higher {
				next += ceilDiv(r, h.Sched.Period) * h.Sched.WCET
			}
			if next == r {
				break
			}
			r = next
			if r > deadline {
				break
			}
		}
		if r > deadline {
			return false
		}
	}
	return true
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
