package sem

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

func TestSemopRejectsEmptyOrBadNum(t *testing.T) {
	tbl := NewTable()
	s, err := tbl.Get(ftok.IPCPrivate, 2, ftok.IPCCreat)
	require.NoError(t, err)

	caller := newTestCaller(1)
	assert.ErrorIs(t, s.Semop(caller, nil), errors.EINVAL)
	assert.ErrorIs(t, s.Semop(caller, []Op{{Num: -1, Val: 1}}), errors.EINVAL)
	assert.ErrorIs(t, s.Semop(caller, []Op{{Num: 5, Val: 1}}), errors.EINVAL)
}

func TestSemopNoWaitReturnsEAGAINWithoutPartialApply(t *testing.T) {
	tbl := NewTable()
	s, err := tbl.Get(ftok.IPCPrivate, 2, ftok.IPCCreat)
	require.NoError(t, err)
	require.NoError(t, s.SetValue(0, 3))

	err = s.Semop(newTestCaller(1), []Op{{Num: 0, Val: 1}, {Num: 1, Val: -1, Flags: ftok.IPCNoWait}})
	assert.ErrorIs(t, err, errors.EAGAIN)

	v0, _ := s.Value(0)
	assert.Equal(t, int16(3), v0, "the op on sem 0 must not have been retained")
}

func TestSemopBlocksThenSucceedsOnWake(t *testing.T) {
	tbl := NewTable()
	s, err := tbl.Get(ftok.IPCPrivate, 1, ftok.IPCCreat)
	require.NoError(t, err)
	require.NoError(t, s.SetValue(0, 0))

	done := make(chan error, 1)
	go func() { done <- s.Semop(newTestCaller(1), []Op{{Num: 0, Val: -1}}) }()

	select {
	case <-done:
		t.Fatal("semop returned before the semaphore was incremented")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, s.SetValue(0, 1))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("semop never woke")
	}
	v, _ := s.Value(0)
	assert.Equal(t, int16(0), v)
}

func TestSemopBlockedByPendingSignalReturnsEINTR(t *testing.T) {
	tbl := NewTable()
	s, err := tbl.Get(ftok.IPCPrivate, 1, ftok.IPCCreat)
	require.NoError(t, err)
	require.NoError(t, s.SetValue(0, 0))

	caller := newTestCaller(1)
	done := make(chan error, 1)
	go func() { done <- s.Semop(caller, []Op{{Num: 0, Val: -1}}) }()

	select {
	case <-done:
		t.Fatal("semop returned before blocking")
	case <-time.After(5 * time.Millisecond):
	}

	caller.Signals.Raise(signal.SIGTERM)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.EINTR)
	case <-time.After(time.Second):
		t.Fatal("semop never woke for the pending signal")
	}
}

func TestGetExclOnExistingKeyIsEEXIST(t *testing.T) {
	tbl := NewTable()
	key := ftok.Token(1, 2, 3)
	_, err := tbl.Get(key, 1, ftok.IPCCreat)
	require.NoError(t, err)

	_, err = tbl.Get(key, 1, ftok.IPCCreat|ftok.IPCExcl)
	assert.ErrorIs(t, err, errors.EEXIST)
}

func TestGetMissingWithoutCreateIsENOENT(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Get(ftok.Token(9, 9, 9), 1, 0)
	assert.ErrorIs(t, err, errors.ENOENT)
}

func TestRemoveIsImmediate(t *testing.T) {
	tbl := NewTable()
	s, err := tbl.Get(ftok.IPCPrivate, 1, ftok.IPCCreat)
	require.NoError(t, err)
	require.NoError(t, tbl.Remove(s.ID))
	_, err = tbl.Lookup(s.ID)
	assert.ErrorIs(t, err, errors.EINVAL)
}
