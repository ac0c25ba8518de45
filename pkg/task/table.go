package task

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/mm/paging"
	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/waitqueue"
)

func newChildWaitEntry(t *Task) *waitqueue.Entry {
	return waitqueue.NewEntry(int64(t.PID), false)
}

// MaxOpenFiles bounds the per-task fd table (EMFILE, spec.md §7).
const MaxOpenFiles = 32

// Table is the kernel-wide process table: the PID allocator plus the
// PID -> Task index and the designated init task that inherits
// orphaned children on exit (spec.md §4.5).
type Table struct {
	mu       klock.Spinlock
	pids     *PIDAllocator
	byPID    map[int]*Task
	initTask *Task
}

// NewTable creates a process table allowing PIDs in [0, maxProcesses)
// and installs init as PID 1, its own session and group leader.
func NewTable(maxProcesses int) *Table {
	tbl := &Table{
		pids:  NewPIDAllocator(maxProcesses),
		byPID: make(map[int]*Task),
	}
	initPID, err := tbl.pids.Alloc()
	if err != nil {
		panic("task: process table too small to hold init")
	}
	init := &Task{
		PID: initPID, PPID: 0, PGID: initPID, SID: initPID,
		Signals:     signal.NewState(),
		GroupLeader: true,
		table:       tbl,
	}
	tbl.initTask = init
	tbl.byPID[initPID] = init
	return tbl
}

// Init returns the table's init task, the reparenting target for
// orphans.
func (tbl *Table) Init() *Task { return tbl.initTask }

// Lookup finds a task by PID, or (nil, false).
func (tbl *Table) Lookup(pid int) (*Task, bool) {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	t, ok := tbl.byPID[pid]
	return t, ok
}

// Fork duplicates parent into a new child task per spec.md §4.5: a
// fresh PID, a COW clone of the mm, a copy of the (here, trivially
// small) fd table, and the child's saved context primed to return 0
// while the parent's is primed to return the new PID. The child is
// linked into the parent's child list; enqueuing it on a runqueue is
// the caller's (pkg/sched's) job.
func (tbl *Table) Fork(parent *Task) (*Task, error) {
	pid, err := tbl.pids.Alloc()
	if err != nil {
		return nil, err
	}

	parent.mu.Lock()
	var childMM *paging.MM
	if parent.MM != nil {
		childMM = parent.MM.Clone()
	}
	childSignals := &signal.State{Blocked: parent.Signals.Blocked, Actions: parent.Signals.Actions}
	child := &Task{
		PID: pid, PPID: parent.PID, PGID: parent.PGID, SID: parent.SID,
		UID: parent.UID, GID: parent.GID,
		MM:      childMM,
		Signals: childSignals,
		Sched:   SchedEntity{Priority: parent.Sched.Priority},
		Parent:  parent,
		table:   tbl,
	}
	child.Context.ReturnValue = 0
	parent.Context.ReturnValue = pid
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()

	tbl.mu.Lock()
	tbl.byPID[pid] = child
	tbl.mu.Unlock()
	return child, nil
}

// Exec replaces t's address space and saved context in place, per
// spec.md §4.5: a fresh mm (the old one destroyed), signal handlers
// reset from caught to SIG_DFL (SIG_IGN survives exec), the blocked
// mask and PID kept, entry point and stack pointer rewritten.
func (t *Task) Exec(newMM *paging.MM, entry, stackTop uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.MM != nil {
		t.MM.Destroy()
	}
	t.MM = newMM

	for sig := signal.Signal(1); sig <= signal.NSIG; sig++ {
		if t.Signals.Actions[sig].Handler != signal.SigIGN {
			t.Signals.Actions[sig] = signal.Action{}
		}
	}
	t.Context = Context{EntryPC: entry, StackTop: stackTop}
}

// WaitOptions mirrors the waitpid flags bit of spec.md §4.5.
type WaitOptions int

const (
	WNOHANG WaitOptions = 1 << iota
)

// Exit stores the exit code, marks the task ZOMBIE, reparents its
// children to init, and wakes the parent's child-wait queue after
// raising SIGCHLD, per spec.md §4.5. It does not free the task_struct
// or PID; Wait does that on reap.
func (tbl *Table) Exit(t *Task, code int) {
	t.mu.Lock()
	t.ExitCode = code
	t.state = Zombie
	if t.MM != nil {
		t.MM.Destroy()
		t.MM = nil
	}
	children := t.Children
	t.Children = nil
	parent := t.Parent
	t.mu.Unlock()

	init := tbl.initTask
	for _, c := range children {
		c.mu.Lock()
		c.Parent = init
		c.PPID = init.PID
		c.mu.Unlock()
		init.mu.Lock()
		init.Children = append(init.Children, c)
		init.mu.Unlock()
	}

	if parent != nil {
		parent.Signals.Raise(signal.SIGCHLD)
		parent.childWait.WakeAll()
	}
}

// findZombieChildLocked returns the first child matching pid (spec.md
// §4.5's waitpid selection rule) that has already exited, and its
// index in t.Children. Caller holds t.mu.
func (t *Task) findZombieChildLocked(pid int) (*Task, int) {
	for i, c := range t.Children {
		if pid > 0 && c.PID != pid {
			continue
		}
		c.mu.Lock()
		isZombie := c.state == Zombie
		c.mu.Unlock()
		if isZombie {
			return c, i
		}
	}
	return nil, -1
}

// hasChildLocked reports whether pid currently names one of t's
// children, zombie or not. Caller holds t.mu.
func (t *Task) hasChildLocked(pid int) bool {
	for _, c := range t.Children {
		if c.PID == pid {
			return true
		}
	}
	return false
}

// Wait implements waitpid(pid, &status, options). pid == -1 waits for
// any child; pid > 0 waits for that specific child; pid == 0 or
// pid < -1 (process-group waits) are not supported and return ESRCH.
func (tbl *Table) Wait(t *Task, pid int, options WaitOptions) (reapedPID int, status int, err error) {
	if pid == 0 || pid < -1 {
		return 0, 0, errors.ESRCH
	}

	for {
		t.mu.Lock()
		if len(t.Children) == 0 {
			t.mu.Unlock()
			return 0, 0, errors.ECHILD
		}
		if pid > 0 && !t.hasChildLocked(pid) {
			t.mu.Unlock()
			return 0, 0, errors.ECHILD
		}
		child, idx := t.findZombieChildLocked(pid)
		if child != nil {
			t.Children = append(t.Children[:idx], t.Children[idx+1:]...)
			t.mu.Unlock()

			tbl.pids.Free(child.PID)
			tbl.mu.Lock()
			delete(tbl.byPID, child.PID)
			tbl.mu.Unlock()

			// spec.md §8: the exit code occupies bits [8..15] of the
			// parent's status word (WEXITSTATUS == (status>>8)&0xff).
			status := (child.ExitCode & 0xff) << 8
			return child.PID, status, nil
		}
		if options&WNOHANG != 0 {
			t.mu.Unlock()
			return 0, 0, nil
		}
		entry := newChildWaitEntry(t)
		t.childWait.Add(entry)
		t.mu.Unlock()
		if err := t.WaitInterruptible(&t.childWait, entry); err != nil {
			return 0, 0, err
		}
	}
}
