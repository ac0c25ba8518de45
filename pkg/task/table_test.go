package task

import (
	"testing"
	"time"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningChild(tbl *Table, parent *Task) *Task {
	c, err := tbl.Fork(parent)
	if err != nil {
		panic(err)
	}
	c.SetState(Running)
	return c
}

func TestForkSetsReturnValuesAndLinksChild(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()

	child, err := tbl.Fork(parent)
	require.NoError(t, err)
	assert.Equal(t, 0, child.Context.ReturnValue)
	assert.Equal(t, child.PID, parent.Context.ReturnValue)
	assert.Equal(t, parent.PID, child.PPID)
	assert.Len(t, parent.Children, 1)
}

func TestExitReparentsChildrenToInit(t *testing.T) {
	tbl := NewTable(16)
	init := tbl.Init()
	init.Signals = signal.NewState()

	parent, err := tbl.Fork(init)
	require.NoError(t, err)
	parent.Signals = signal.NewState()
	grandchild, err := tbl.Fork(parent)
	require.NoError(t, err)
	grandchild.SetState(Running)

	tbl.Exit(parent, 0)

	assert.Equal(t, init.PID, grandchild.PPID)
	assert.Contains(t, init.Children, grandchild)
}

func TestWaitReapsZombieChild(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()
	child := newRunningChild(tbl, parent)

	tbl.Exit(child, 7)

	pid, status, err := tbl.Wait(parent, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, child.PID, pid)
	assert.Equal(t, 7<<8, status, "exit code must occupy bits [8..15] of the status word")
	assert.Empty(t, parent.Children)

	_, ok := tbl.Lookup(child.PID)
	assert.False(t, ok, "reaped PID must be freed from the table")
}

func TestWaitNoHangReturnsZeroImmediately(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()
	newRunningChild(tbl, parent)

	pid, _, err := tbl.Wait(parent, -1, WNOHANG)
	require.NoError(t, err)
	assert.Equal(t, 0, pid)
}

func TestWaitNoChildrenReturnsECHILD(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	_, _, err := tbl.Wait(parent, -1, 0)
	assert.ErrorIs(t, err, errors.ECHILD)
}

func TestWaitUnsupportedPGIDFormsReturnESRCH(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	_, _, err := tbl.Wait(parent, 0, 0)
	assert.ErrorIs(t, err, errors.ESRCH)
	_, _, err = tbl.Wait(parent, -5, 0)
	assert.ErrorIs(t, err, errors.ESRCH)
}

func TestWaitOnNonChildPIDReturnsECHILDRatherThanBlocking(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()
	newRunningChild(tbl, parent)

	_, _, err := tbl.Wait(parent, 99999, 0)
	assert.ErrorIs(t, err, errors.ECHILD)
}

func TestWaitBlocksUntilChildExits(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()
	child := newRunningChild(tbl, parent)

	done := make(chan int, 1)
	go func() {
		pid, _, err := tbl.Wait(parent, -1, 0)
		if err != nil {
			done <- -1
			return
		}
		done <- pid
	}()

	select {
	case <-done:
		t.Fatal("wait returned before the child exited")
	case <-time.After(20 * time.Millisecond):
	}

	tbl.Exit(child, 0)

	select {
	case pid := <-done:
		assert.Equal(t, child.PID, pid)
	case <-time.After(time.Second):
		t.Fatal("wait did not wake after child exit")
	}
}

func TestWaitBlockedByPendingSignalReturnsEINTR(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()
	newRunningChild(tbl, parent)

	done := make(chan error, 1)
	go func() {
		_, _, err := tbl.Wait(parent, -1, 0)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("wait returned before blocking")
	case <-time.After(5 * time.Millisecond):
	}

	parent.Signals.Raise(signal.SIGTERM)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.EINTR)
	case <-time.After(time.Second):
		t.Fatal("wait never woke for the pending signal")
	}
}

func TestExecResetsCaughtHandlersButKeepsIgnored(t *testing.T) {
	tbl := NewTable(16)
	parent := tbl.Init()
	parent.Signals = signal.NewState()
	require.NoError(t, parent.Signals.SetAction(signal.SIGTERM, signal.Action{Handler: 0x1234}))
	require.NoError(t, parent.Signals.SetAction(signal.SIGUSR1, signal.Action{Handler: signal.SigIGN}))

	parent.Exec(nil, 0x8000, 0xC0000000)

	assert.Equal(t, signal.SigDFL, parent.Signals.Actions[signal.SIGTERM].Handler)
	assert.Equal(t, signal.SigIGN, parent.Signals.Actions[signal.SIGUSR1].Handler)
	assert.Equal(t, uintptr(0x8000), parent.Context.EntryPC)
}
