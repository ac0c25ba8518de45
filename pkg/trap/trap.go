// Package trap implements the system-call dispatch core of spec.md
// §4.10: a fixed-size table keyed by syscall number, the -1/errno-cell
// return convention, and the signal-delivery-on-return pass of §4.8.
// Concrete syscalls are registered by the boot harness (cmd/kernel),
// which is where the task/sched/ipc packages actually get wired
// together; this package only knows the generic calling convention.
package trap

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/task"
)

// Frame stands in for the saved user register frame of spec.md §4.10:
// the syscall number, up to five arguments, and the return value slot
// the trap gate writes back.
type Frame struct {
	Num    int
	Args   [5]uintptr
	Return int64
}

// HandlerFunc implements one syscall. Returning a non-nil error is
// translated to the -1/errno convention by Dispatch; returning a
// *errors.Errno-compatible error selects the reported errno, anything
// else maps to EINVAL.
type HandlerFunc func(t *task.Task, f *Frame) (int64, error)

// Table is the fixed-size syscall dispatch table.
type Table struct {
	handlers map[int]HandlerFunc
}

func NewTable() *Table {
	return &Table{handlers: make(map[int]HandlerFunc)}
}

// Register installs handler for syscall number num. Registering twice
// for the same number is a boot-time programming error and panics.
func (tt *Table) Register(num int, handler HandlerFunc) {
	if _, exists := tt.handlers[num]; exists {
		panic("trap: duplicate syscall registration")
	}
	tt.handlers[num] = handler
}

// Dispatch runs one syscall: an unknown number yields ENOSYS; a
// handler error sets t.Errno and writes -1 to f.Return; success writes
// the handler's return value directly, per spec.md §4.10.
func (tt *Table) Dispatch(t *task.Task, f *Frame) {
	h, ok := tt.handlers[f.Num]
	if !ok {
		t.Errno = int(errors.ENOSYS)
		f.Return = -1
		return
	}

	ret, err := h(t, f)
	if err != nil {
		var errno errors.Errno
		if !errors.As(err, &errno) {
			errno = errors.EINVAL
		}
		t.Errno = int(errno)
		f.Return = -1
		return
	}
	f.Return = ret
}
