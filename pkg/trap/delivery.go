package trap

import (
	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/task"
)

// DeliverPending runs the signal-delivery pass of spec.md §4.8 on every
// return to user mode: for the highest-priority deliverable signal,
// apply SIG_IGN/SIG_DFL directly, or push a signal frame and rewrite
// the saved context to enter the user handler. At most one user
// handler is entered per call (it runs, then its sigreturn re-enters
// this pass); SIG_DFL/SIG_IGN dispositions that don't stop the task
// keep looping so multiple simultaneously-pending default signals
// don't require multiple trap round-trips.
func DeliverPending(tbl *task.Table, t *task.Task) {
	for {
		d, ok := t.Signals.NextDelivery()
		if !ok {
			return
		}

		switch d.Handler {
		case signal.SigIGN:
			t.Signals.Ack(d)

		case signal.SigDFL:
			switch signal.DefaultDisposition(d.Signal) {
			case signal.DispTerminate, signal.DispCoreDump:
				t.Signals.Ack(d)
				tbl.Exit(t, 128+int(d.Signal))
				return
			case signal.DispStop:
				t.Signals.Ack(d)
				t.SetState(task.Stopped)
				return
			case signal.DispContinue:
				t.Signals.Ack(d)
				t.SetState(task.Running)
			case signal.DispIgnore:
				t.Signals.Ack(d)
			}

		default:
			t.PushSignalFrame(task.SignalFrame{Context: t.Context, Blocked: t.Signals.Blocked})
			t.Signals.Ack(d)
			t.Context.EntryPC = d.Handler
			return
		}
	}
}

// Sigreturn implements the sigreturn syscall: pops the most recently
// pushed signal frame and restores the interrupted context and blocked
// mask. A stray call with nothing pushed is a no-op, matching "this
// can only happen from a corrupted user stack" territory that a
// teaching kernel doesn't need to crash over.
func Sigreturn(t *task.Task) {
	f, ok := t.PopSignalFrame()
	if !ok {
		return
	}
	t.Context = f.Context
	t.Signals.Blocked = f.Blocked
}
