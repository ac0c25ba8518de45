package sched

import "github.com/eduos/kernel/pkg/task"

// EDF orders periodic tasks by absolute deadline; the runnable task
// with the earliest NextPeriod+Deadline runs next (spec.md §4.6).
type EDF struct{}

func (EDF) Name() string { return "edf" }

func (EDF) Pick(runnable []*task.Task) *task.Task {
	if len(runnable) == 0 {
		return nil
	}
	best := runnable[0]
	for _, t := range runnable[1:] {
		if absoluteDeadline(t) < absoluteDeadline(best) {
			best = t
		}
	}
	return best
}

func absoluteDeadline(t *task.Task) uint64 {
	if !t.Sched.IsPeriodic {
		return ^uint64(0)
	}
	deadline := t.Sched.Deadline
	if deadline == 0 {
		deadline = t.Sched.Period
	}
	return t.Sched.NextPeriod + deadline
}

// Admit requires total utilization across the admitted set plus
// candidate to be at most 1, the EDF exact schedulability test for
// implicit/constrained-deadline periodic tasks (spec.md §4.6).
func (EDF) Admit(admitted []*task.Task, candidate *task.Task) bool {
	util := float64(candidate.Sched.WCET) / float64(candidate.Sched.Period)
	for _, t := range admitted {
		util += float64(t.Sched.WCET) / float64(t.Sched.Period)
	}
	return util <= 1.0
}
