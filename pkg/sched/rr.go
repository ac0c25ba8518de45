package sched

import "github.com/eduos/kernel/pkg/task"

// RoundRobin picks the runnable task with the largest effective
// priority, breaking ties by least virtual runtime, breaking further
// ties by list order, per spec.md §4.6.
type RoundRobin struct{}

func (RoundRobin) Name() string { return "round-robin" }

func (RoundRobin) Pick(runnable []*task.Task) *task.Task {
	if len(runnable) == 0 {
		return nil
	}
	best := runnable[0]
	for _, t := range runnable[1:] {
		switch {
		case t.Sched.Priority > best.Sched.Priority:
			best = t
		case t.Sched.Priority == best.Sched.Priority && t.Sched.VRuntime < best.Sched.VRuntime:
			best = t
		}
	}
	return best
}

// Admit always admits: round-robin performs no real-time feasibility
// analysis.
func (RoundRobin) Admit([]*task.Task, *task.Task) bool { return true }
