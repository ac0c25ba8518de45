package trap

import (
	"testing"

	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverPendingSigIgnClearsWithoutAction(t *testing.T) {
	tbl := task.NewTable(16)
	child, err := tbl.Fork(tbl.Init())
	require.NoError(t, err)
	child.Signals = signal.NewState()
	require.NoError(t, child.Signals.SetAction(signal.SIGUSR1, signal.Action{Handler: signal.SigIGN}))
	child.Signals.Pending = child.Signals.Pending.Add(signal.SIGUSR1) // bypass Raise's own drop, to exercise delivery directly

	DeliverPending(tbl, child)
	assert.False(t, child.Signals.Pending.Has(signal.SIGUSR1))
	assert.Equal(t, task.Running, child.State())
}

func TestDeliverPendingDefaultTerminateExitsTask(t *testing.T) {
	tbl := task.NewTable(16)
	init := tbl.Init()
	child, err := tbl.Fork(init)
	require.NoError(t, err)
	child.Signals = signal.NewState()
	child.Signals.Raise(signal.SIGTERM)

	DeliverPending(tbl, child)
	assert.Equal(t, task.Zombie, child.State())
}

func TestDeliverPendingUserHandlerPushesFrameAndSigreturnRestores(t *testing.T) {
	tbl := task.NewTable(16)
	child, err := tbl.Fork(tbl.Init())
	require.NoError(t, err)
	child.Signals = signal.NewState()
	require.NoError(t, child.Signals.SetAction(signal.SIGTERM, signal.Action{Handler: 0xABCD}))
	child.Context = task.Context{EntryPC: 0x1000, StackTop: 0x2000}
	child.Signals.Raise(signal.SIGTERM)

	DeliverPending(tbl, child)
	assert.Equal(t, uintptr(0xABCD), child.Context.EntryPC)
	assert.True(t, child.Signals.Blocked.Has(signal.SIGTERM))

	Sigreturn(child)
	assert.Equal(t, uintptr(0x1000), child.Context.EntryPC)
	assert.False(t, child.Signals.Blocked.Has(signal.SIGTERM))
}

func TestSigreturnWithEmptyStackIsNoop(t *testing.T) {
	child := &task.Task{Signals: signal.NewState(), Context: task.Context{EntryPC: 0x42}}
	Sigreturn(child)
	assert.Equal(t, uintptr(0x42), child.Context.EntryPC)
}
