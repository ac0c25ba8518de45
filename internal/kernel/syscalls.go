package kernel

import (
	"encoding/binary"
	"time"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/ipc/msgqueue"
	"github.com/eduos/kernel/pkg/ipc/sem"
	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/task"
	"github.com/eduos/kernel/pkg/trap"
)

// unameSysname/Release/Version are the fixed strings this teaching
// kernel reports to uname(2); there is no build-time version stamping
// in scope, so these are constants rather than derived from anywhere.
const (
	unameSysname = "eduos"
	unameRelease = "0.1"
	unameVersion = "teaching kernel core"
)

// registerSyscalls binds the generic trap.Table to this kernel's
// concrete subsystems, one handler per number in pkg/trap's ABI. The
// trap frame only carries five scalar argument words, not a general
// user-memory descriptor, so calls whose libc shape takes an array
// (semop's batch, read/write's buffer) are narrowed to the scalar
// subset that fits: semop takes exactly one op per call, read/write
// take a single (va, length) pair copied through paging.MM.ReadUser/
// WriteUser.
func registerSyscalls(k *Kernel) *trap.Table {
	tt := trap.NewTable()

	tt.Register(trap.SysGetPID, func(t *task.Task, f *trap.Frame) (int64, error) {
		return int64(t.PID), nil
	})

	tt.Register(trap.SysGetPPID, func(t *task.Task, f *trap.Frame) (int64, error) {
		return int64(t.PPID), nil
	})

	tt.Register(trap.SysFork, func(t *task.Task, f *trap.Frame) (int64, error) {
		child, err := k.Tasks.Fork(t)
		if err != nil {
			return 0, err
		}
		k.Sched.Enqueue(child)
		return int64(child.PID), nil
	})

	// SysExecve takes the new entry point and stack top directly as
	// arguments rather than a path to load off disk: there is no ELF
	// loader or filesystem in this kernel's scope, so exec here is the
	// address-space-replacement half of the syscall with the loading
	// half left to whatever put the program's bytes there already.
	tt.Register(trap.SysExecve, func(t *task.Task, f *trap.Frame) (int64, error) {
		entry := f.Args[0]
		stackTop := f.Args[1]
		t.Exec(k.NewMM(), entry, stackTop)
		return 0, nil
	})

	tt.Register(trap.SysExit, func(t *task.Task, f *trap.Frame) (int64, error) {
		k.Tasks.Exit(t, int(f.Args[0]))
		return 0, nil
	})

	tt.Register(trap.SysWaitpid, func(t *task.Task, f *trap.Frame) (int64, error) {
		pid := int(int32(f.Args[0]))
		options := task.WaitOptions(f.Args[1])
		statusVA := f.Args[2]
		reaped, status, err := k.Tasks.Wait(t, pid, options)
		if err != nil {
			return 0, err
		}
		if statusVA != 0 {
			buf := []byte{byte(status), byte(status >> 8), byte(status >> 16), byte(status >> 24)}
			if err := t.MM.WriteUser(statusVA, buf); err != nil {
				return 0, err
			}
		}
		return int64(reaped), nil
	})

	tt.Register(trap.SysKill, func(t *task.Task, f *trap.Frame) (int64, error) {
		target, ok := k.Tasks.Lookup(int(int32(f.Args[0])))
		if !ok {
			return 0, errors.ESRCH
		}
		target.Signals.Raise(signal.Signal(f.Args[1]))
		return 0, nil
	})

	tt.Register(trap.SysSigaction, func(t *task.Task, f *trap.Frame) (int64, error) {
		sig := signal.Signal(f.Args[0])
		old := t.Signals.Actions[sig]
		act := signal.Action{
			Handler: f.Args[1],
			Mask:    signal.Set(f.Args[2]),
			Flags:   signal.Flags(f.Args[3]),
		}
		if err := t.Signals.SetAction(sig, act); err != nil {
			return 0, err
		}
		return int64(old.Handler), nil
	})

	tt.Register(trap.SysSigprocmask, func(t *task.Task, f *trap.Frame) (int64, error) {
		old, err := t.Signals.SetBlocked(signal.How(f.Args[0]), signal.Set(f.Args[1]))
		if err != nil {
			return 0, err
		}
		return int64(old), nil
	})

	tt.Register(trap.SysSigreturn, func(t *task.Task, f *trap.Frame) (int64, error) {
		trap.Sigreturn(t)
		return 0, nil
	})

	tt.Register(trap.SysSetsid, func(t *task.Task, f *trap.Frame) (int64, error) {
		sid, err := t.Setsid()
		if err != nil {
			return 0, err
		}
		return int64(sid), nil
	})

	tt.Register(trap.SysSetpgid, func(t *task.Task, f *trap.Frame) (int64, error) {
		err := k.Tasks.Setpgid(t, int(int32(f.Args[0])), int(int32(f.Args[1])))
		return 0, err
	})

	tt.Register(trap.SysGetsid, func(t *task.Task, f *trap.Frame) (int64, error) {
		sid, err := k.Tasks.Getsid(t, int(int32(f.Args[0])))
		if err != nil {
			return 0, err
		}
		return int64(sid), nil
	})

	// SysSchedSetParam installs the periodic-task parameters of spec.md
	// §4.6 directly on the caller; admission itself happens lazily on
	// the first SysWaitperiod, not here.
	tt.Register(trap.SysSchedSetParam, func(t *task.Task, f *trap.Frame) (int64, error) {
		period := uint64(f.Args[0])
		if period == 0 {
			return 0, errors.EINVAL
		}
		t.Sched.IsPeriodic = true
		t.Sched.Period = period
		t.Sched.WCET = uint64(f.Args[1])
		t.Sched.Deadline = uint64(f.Args[2])
		return 0, nil
	})

	tt.Register(trap.SysWaitperiod, func(t *task.Task, f *trap.Frame) (int64, error) {
		return 0, k.Sched.WaitPeriod(t)
	})

	tt.Register(trap.SysSemget, func(t *task.Task, f *trap.Frame) (int64, error) {
		set, err := k.Sem.Get(ftok.Key(int32(f.Args[0])), int(f.Args[1]), ftok.GetFlags(f.Args[2]))
		if err != nil {
			return 0, err
		}
		return int64(set.ID), nil
	})

	// SysSemop applies exactly one semaphore operation per call (see the
	// registerSyscalls doc comment on the five-argument-word narrowing).
	tt.Register(trap.SysSemop, func(t *task.Task, f *trap.Frame) (int64, error) {
		set, err := k.Sem.Lookup(int(f.Args[0]))
		if err != nil {
			return 0, err
		}
		op := sem.Op{Num: int(f.Args[1]), Val: int16(int32(f.Args[2])), Flags: ftok.OpFlags(f.Args[3])}
		return 0, set.Semop(t, []sem.Op{op})
	})

	// SysSemctl supports the three commands a teaching kernel needs:
	// IPC_RMID (0), GETVAL (1, semnum in Args[2]), SETVAL (2, semnum in
	// Args[2], value in Args[3]).
	tt.Register(trap.SysSemctl, func(t *task.Task, f *trap.Frame) (int64, error) {
		id := int(f.Args[0])
		switch cmd := f.Args[1]; cmd {
		case 0:
			return 0, k.Sem.Remove(id)
		case 1:
			set, err := k.Sem.Lookup(id)
			if err != nil {
				return 0, err
			}
			val, err := set.Value(int(f.Args[2]))
			return int64(val), err
		case 2:
			set, err := k.Sem.Lookup(id)
			if err != nil {
				return 0, err
			}
			return 0, set.SetValue(int(f.Args[2]), int16(int32(f.Args[3])))
		default:
			return 0, errors.EINVAL
		}
	})

	tt.Register(trap.SysMsgget, func(t *task.Task, f *trap.Frame) (int64, error) {
		q, err := k.Msg.Get(ftok.Key(int32(f.Args[0])), ftok.GetFlags(f.Args[1]))
		if err != nil {
			return 0, err
		}
		return int64(q.ID), nil
	})

	// SysMsgsnd copies the message body in from user memory at Args[2],
	// length Args[3]; Args[1] is the message type, Args[4] the flags.
	tt.Register(trap.SysMsgsnd, func(t *task.Task, f *trap.Frame) (int64, error) {
		q, err := k.Msg.Lookup(int(f.Args[0]))
		if err != nil {
			return 0, err
		}
		data := make([]byte, f.Args[3])
		if err := t.MM.ReadUser(f.Args[2], data); err != nil {
			return 0, err
		}
		msg := msgqueue.Message{Type: int64(f.Args[1]), Data: data}
		return 0, q.Send(t, msg, ftok.OpFlags(f.Args[4]))
	})

	// SysMsgrcv writes the received message body out to user memory at
	// Args[2], truncated to the caller's buffer size Args[3]; Args[1]
	// is the requested type, Args[4] the flags. Returns the number of
	// bytes actually copied.
	tt.Register(trap.SysMsgrcv, func(t *task.Task, f *trap.Frame) (int64, error) {
		q, err := k.Msg.Lookup(int(f.Args[0]))
		if err != nil {
			return 0, err
		}
		msg, err := q.Receive(t, int64(f.Args[1]), ftok.OpFlags(f.Args[4]))
		if err != nil {
			return 0, err
		}
		data := msg.Data
		if max := int(f.Args[3]); len(data) > max {
			data = data[:max]
		}
		if err := t.MM.WriteUser(f.Args[2], data); err != nil {
			return 0, err
		}
		return int64(len(data)), nil
	})

	tt.Register(trap.SysMsgctl, func(t *task.Task, f *trap.Frame) (int64, error) {
		return 0, k.Msg.Remove(int(f.Args[0]))
	})

	tt.Register(trap.SysShmget, func(t *task.Task, f *trap.Frame) (int64, error) {
		seg, err := k.Shm.Get(ftok.Key(int32(f.Args[0])), uintptr(f.Args[1]), ftok.GetFlags(f.Args[2]))
		if err != nil {
			return 0, err
		}
		return int64(seg.ID), nil
	})

	tt.Register(trap.SysShmat, func(t *task.Task, f *trap.Frame) (int64, error) {
		seg, err := k.Shm.Lookup(int(f.Args[0]))
		if err != nil {
			return 0, err
		}
		vma, err := k.Shm.Attach(seg, t.MM, f.Args[1], f.Args[2] != 0)
		if err != nil {
			return 0, err
		}
		return int64(vma.Start), nil
	})

	tt.Register(trap.SysShmdt, func(t *task.Task, f *trap.Frame) (int64, error) {
		seg, err := k.Shm.Lookup(int(f.Args[0]))
		if err != nil {
			return 0, err
		}
		return 0, k.Shm.Detach(seg, t.MM, f.Args[1])
	})

	tt.Register(trap.SysShmctl, func(t *task.Task, f *trap.Frame) (int64, error) {
		return 0, k.Shm.Remove(int(f.Args[0]))
	})

	// SysReadSector and SysWriteSector take (lba, user va, length)
	// rather than a byte offset: the sole consumer of block I/O is this
	// teaching kernel's own disk-resident scenarios, which always deal
	// in whole sectors.
	tt.Register(trap.SysReadSector, func(t *task.Task, f *trap.Frame) (int64, error) {
		lba, va, n := f.Args[0], f.Args[1], f.Args[2]
		buf := make([]byte, n)
		read, err := k.Disk.Read(lba*512, uint64(n), buf)
		if err != nil {
			return 0, err
		}
		if err := t.MM.WriteUser(va, buf[:read]); err != nil {
			return 0, err
		}
		return int64(read), nil
	})

	tt.Register(trap.SysWriteSector, func(t *task.Task, f *trap.Frame) (int64, error) {
		lba, va, n := f.Args[0], f.Args[1], f.Args[2]
		buf := make([]byte, n)
		if err := t.MM.ReadUser(va, buf); err != nil {
			return 0, err
		}
		written, err := k.Disk.Write(lba*512, uint64(n), buf)
		if err != nil {
			return 0, err
		}
		return int64(written), nil
	})

	// SysUname writes sysname\0release\0version\0 into the user buffer
	// at Args[0], truncated to the caller's capacity Args[1].
	tt.Register(trap.SysUname, func(t *task.Task, f *trap.Frame) (int64, error) {
		raw := unameSysname + "\x00" + unameRelease + "\x00" + unameVersion + "\x00"
		buf := []byte(raw)
		if max := int(f.Args[1]); len(buf) > max {
			buf = buf[:max]
		}
		if err := t.MM.WriteUser(f.Args[0], buf); err != nil {
			return 0, err
		}
		return int64(len(buf)), nil
	})

	// SysNanosleep blocks the calling task for Args[0] milliseconds. The
	// sleep is interruptible the same way a blocked semop or msgrcv is:
	// a pending, unblocked signal delivered to t cancels the sleep early
	// and returns EINTR (spec.md §4.7 "Cancellation"). alarm.NanosleepEntry
	// has no Head to dequeue from, so this polls Fired/Deliverable
	// directly rather than going through task.WaitInterruptible.
	tt.Register(trap.SysNanosleep, func(t *task.Task, f *trap.Frame) (int64, error) {
		entry := k.Clock.Sleep(time.Duration(f.Args[0]) * time.Millisecond)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			if entry.Fired() {
				return 0, nil
			}
			if _, ok := t.Signals.Deliverable(); ok {
				return 0, errors.EINTR
			}
			<-ticker.C
		}
	})

	// SysAlarm schedules SIGALRM for the caller after Args[0] seconds.
	// alarm(0)'s "cancel the pending alarm" contract is not modeled (see
	// DESIGN.md); every call here schedules a new delivery.
	tt.Register(trap.SysAlarm, func(t *task.Task, f *trap.Frame) (int64, error) {
		k.Clock.Alarm(t, time.Duration(f.Args[0])*time.Second)
		return 0, nil
	})

	// SysPipe hands back an IPC_PRIVATE message queue id as both the read
	// and write endpoint, written as two little-endian uint32s at
	// Args[0]: there is no file descriptor table or byte-stream pipe
	// buffer in scope, so a queue id standing in for both ends is the
	// closest real primitive this kernel has to offer.
	tt.Register(trap.SysPipe, func(t *task.Task, f *trap.Frame) (int64, error) {
		q, err := k.Msg.Get(ftok.IPCPrivate, ftok.IPCCreat)
		if err != nil {
			return 0, err
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint32(buf[0:4], uint32(q.ID))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(q.ID))
		if err := t.MM.WriteUser(f.Args[0], buf); err != nil {
			return 0, err
		}
		return 0, nil
	})

	// SysMount, SysDup, and SysDup2 have no owning subsystem in this
	// kernel's scope (no filesystem, no per-task file descriptor table),
	// so they round out the syscall table as real dispatch entries that
	// report ENOSYS rather than being absent from it.
	notImplemented := func(t *task.Task, f *trap.Frame) (int64, error) {
		return 0, errors.ENOSYS
	}
	tt.Register(trap.SysMount, notImplemented)
	tt.Register(trap.SysDup, notImplemented)
	tt.Register(trap.SysDup2, notImplemented)

	// SysBrk has no per-task heap-break bookkeeping in scope (spec.md's
	// task_struct carries none); it reports ENOSYS rather than silently
	// accepting a break it can't track, so callers see a real failure
	// instead of a no-op success.
	tt.Register(trap.SysBrk, notImplemented)

	// SysLogin reads a username at (Args[0], Args[1]) and a password at
	// (Args[2], Args[3]) out of user memory and checks them against the
	// account database loaded at boot. A wrong password and an unknown
	// user both fail the same way (see authdb.DB.Login), so the syscall
	// can't be used to enumerate valid usernames.
	tt.Register(trap.SysLogin, func(t *task.Task, f *trap.Frame) (int64, error) {
		user := make([]byte, f.Args[1])
		if err := t.MM.ReadUser(f.Args[0], user); err != nil {
			return 0, err
		}
		pass := make([]byte, f.Args[3])
		if err := t.MM.ReadUser(f.Args[2], pass); err != nil {
			return 0, err
		}
		return 0, k.Auth.Login(string(user), string(pass))
	})

	return tt
}
