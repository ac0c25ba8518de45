// Package task implements the process model of spec.md §4.5: the
// task_struct equivalent, the PID allocator, and fork/exec/exit/wait.
// Sleeping is modeled by blocking the goroutine that represents the
// task on a pkg/waitqueue entry; pkg/sched layers policy (which
// runnable task to run next) on top of the Task/Table types defined
// here without this package importing back into pkg/sched.
package task

import (
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/mm/paging"
	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/waitqueue"
)

// State is the task_struct run state of spec.md §3.
type State int32

const (
	Running State = iota
	Interruptible
	Uninterruptible
	Stopped
	Zombie
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Interruptible:
		return "INTERRUPTIBLE"
	case Uninterruptible:
		return "UNINTERRUPTIBLE"
	case Stopped:
		return "STOPPED"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// SchedEntity is the scheduling-relevant subset of task_struct that
// pkg/sched's policies read and mutate: round-robin priority/vruntime
// plus the periodic-task fields of spec.md §4.6. It lives here, not in
// pkg/sched, because it is intrinsic task state that survives across
// whatever policy is compiled in.
type SchedEntity struct {
	Priority int
	VRuntime uint64

	// Periodic task fields (spec.md §4.6). IsPeriodic marks that
	// sched_setparam requested periodic treatment; Admitted becomes
	// true only after the first waitperiod's feasibility check passes.
	IsPeriodic bool
	Period     uint64 // ticks
	WCET       uint64 // worst-case execution time, ticks
	Deadline   uint64 // relative deadline, ticks; 0 means == Period
	NextPeriod uint64 // absolute tick of the next release
	Executed   bool
	Admitted   bool
}

// Task is the task_struct equivalent: identity, address space, signal
// state, and process-tree linkage.
type Task struct {
	PID  int
	PPID int
	PGID int
	SID  int
	UID  uint32
	GID  uint32

	MM      *paging.MM
	Signals *signal.State
	Sched   SchedEntity

	// Errno is the per-task errno cell of spec.md §4.10, set by trap
	// dispatch on syscall failure alongside writing -1 to the return
	// value slot.
	Errno int

	// Context is a stand-in for the saved trap frame (spec.md §4.5's
	// saved register context): just enough state for fork/exec/sigreturn
	// to manipulate a "return value" and "entry point" without modeling
	// real x86 registers.
	Context Context

	ExitCode int
	// GroupLeader marks a task as a session leader (setsid already
	// called), per spec.md §4.5's "not already a group leader" rule.
	GroupLeader bool

	mu           klock.Spinlock
	state        State
	Parent       *Task
	Children     []*Task
	signalFrames []SignalFrame

	childWait waitqueue.Head // woken by SIGCHLD delivery on exit
	table     *Table
}

// Context models the part of the saved register frame that fork/exec
// touch: the syscall return value slot and the entry point/stack used
// by exec.
type Context struct {
	ReturnValue int
	EntryPC     uintptr
	StackTop    uintptr
}

// SignalFrame is the pushed state a user signal handler restores on
// sigreturn (spec.md §4.8): the interrupted register context and the
// blocked mask as it stood before the handler's mask was applied.
type SignalFrame struct {
	Context Context
	Blocked signal.Set
}

// PushSignalFrame saves f, to be restored by a later PopSignalFrame
// (sigreturn).
func (t *Task) PushSignalFrame(f SignalFrame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signalFrames = append(t.signalFrames, f)
}

// PopSignalFrame restores the most recently pushed frame, or reports
// false if the stack is empty (a stray sigreturn).
func (t *Task) PopSignalFrame() (SignalFrame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.signalFrames)
	if n == 0 {
		return SignalFrame{}, false
	}
	f := t.signalFrames[n-1]
	t.signalFrames = t.signalFrames[:n-1]
	return f, true
}

// State returns the task's current run state under its lock.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState installs a new run state. Transitioning into Zombie should
// go through Table.Exit instead, which also handles reparenting.
func (t *Task) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}
