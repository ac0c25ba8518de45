package msgqueue

import (
	"testing"
	"time"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/signal"
	"github.com/eduos/kernel/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCaller(pid int) *task.Task {
	return &task.Task{PID: pid, Signals: signal.NewState()}
}

func TestSendReceiveFIFOWithinType(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)
	caller := newTestCaller(1)

	require.NoError(t, q.Send(caller, Message{Type: 1, Data: []byte("a")}, 0))
	require.NoError(t, q.Send(caller, Message{Type: 1, Data: []byte("b")}, 0))

	m, err := q.Receive(caller, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "a", string(m.Data))
	m, err = q.Receive(caller, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", string(m.Data))
}

func TestReceiveTypeZeroMatchesAny(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)
	caller := newTestCaller(1)
	require.NoError(t, q.Send(caller, Message{Type: 5, Data: []byte("x")}, 0))

	m, err := q.Receive(caller, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.Type)
}

func TestReceiveNegativeTypeTakesSmallestUpToLimit(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)
	caller := newTestCaller(1)
	require.NoError(t, q.Send(caller, Message{Type: 4, Data: []byte("four")}, 0))
	require.NoError(t, q.Send(caller, Message{Type: 2, Data: []byte("two")}, 0))
	require.NoError(t, q.Send(caller, Message{Type: 6, Data: []byte("six")}, 0))

	m, err := q.Receive(caller, -4, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Type, "smallest type <= 4 is 2")
}

func TestReceiveNoWaitReturnsENOMSG(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)

	_, err = q.Receive(newTestCaller(1), 1, ftok.IPCNoWait)
	assert.ErrorIs(t, err, errors.ENOMSG)
}

func TestSendNoWaitReturnsEAGAINWhenFull(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)
	q.MaxBytes = 4
	caller := newTestCaller(1)

	require.NoError(t, q.Send(caller, Message{Type: 1, Data: []byte("abcd")}, 0))
	err = q.Send(caller, Message{Type: 1, Data: []byte("e")}, ftok.IPCNoWait)
	assert.ErrorIs(t, err, errors.EAGAIN)
}

func TestReceiveBlocksUntilMatchingSend(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)
	caller := newTestCaller(1)

	done := make(chan Message, 1)
	go func() {
		m, _ := q.Receive(caller, 7, 0)
		done <- m
	}()

	select {
	case <-done:
		t.Fatal("receive returned before a matching message was sent")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Send(newTestCaller(2), Message{Type: 1, Data: []byte("wrong type")}, 0))
	require.NoError(t, q.Send(newTestCaller(2), Message{Type: 7, Data: []byte("right")}, 0))

	select {
	case m := <-done:
		assert.Equal(t, "right", string(m.Data))
	case <-time.After(time.Second):
		t.Fatal("receive never woke")
	}
}

func TestReceiveBlockedByPendingSignalReturnsEINTR(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)

	caller := newTestCaller(1)
	done := make(chan error, 1)
	go func() {
		_, err := q.Receive(caller, 7, 0)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("receive returned before blocking")
	case <-time.After(5 * time.Millisecond):
	}

	caller.Signals.Raise(signal.SIGTERM)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.EINTR)
	case <-time.After(time.Second):
		t.Fatal("receive never woke for the pending signal")
	}
}

func TestSendBlockedByPendingSignalReturnsEINTR(t *testing.T) {
	tbl := NewTable()
	q, err := tbl.Get(ftok.IPCPrivate, ftok.IPCCreat)
	require.NoError(t, err)
	q.MaxBytes = 1

	caller := newTestCaller(1)
	require.NoError(t, q.Send(newTestCaller(2), Message{Type: 1, Data: []byte("x")}, 0))

	done := make(chan error, 1)
	go func() { done <- q.Send(caller, Message{Type: 1, Data: []byte("y")}, 0) }()

	select {
	case <-done:
		t.Fatal("send returned before blocking")
	case <-time.After(5 * time.Millisecond):
	}

	caller.Signals.Raise(signal.SIGTERM)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.EINTR)
	case <-time.After(time.Second):
		t.Fatal("send never woke for the pending signal")
	}
}
