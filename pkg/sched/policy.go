// Package sched implements the pluggable scheduler core of spec.md
// §4.6: a runqueue that is policy-agnostic plus three interchangeable
// policies (round-robin/priority, Rate Monotonic, Earliest-Deadline
// First) and the periodic-task admission/wait machinery shared by the
// two real-time policies. Exactly one policy is compiled in, mirroring
// spec.md's "a compile-time choice selects one of" framing.
package sched

import "github.com/eduos/kernel/pkg/task"

// Policy picks the next task to run from a runnable set and, for the
// real-time policies, decides whether admitting a new periodic task
// keeps the whole periodic set schedulable.
type Policy interface {
	Name() string

	// Pick returns the runnable task that should run next, or nil if
	// runnable is empty. runnable is never mutated.
	Pick(runnable []*task.Task) *task.Task

	// Admit decides whether adding candidate to the already-admitted
	// periodic set keeps it schedulable, per spec.md §4.6. Policies
	// that don't do real-time admission (round-robin) always admit.
	Admit(admitted []*task.Task, candidate *task.Task) bool
}
