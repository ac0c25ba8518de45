package klock

import (
	"testing"
	"time"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexLockUnlockRoundTrip(t *testing.T) {
	m := NewMutex()
	m.Lock(1)
	assert.Equal(t, int64(1), m.Owner())
	require.NoError(t, m.Unlock(1))
	assert.Equal(t, int64(0), m.Owner())
}

func TestMutexTryLockFailsWhileHeld(t *testing.T) {
	m := NewMutex()
	m.Lock(1)
	assert.False(t, m.TryLock(2))
	require.NoError(t, m.Unlock(1))
	assert.True(t, m.TryLock(2))
}

func TestMutexUnlockByNonOwnerReturnsEPERM(t *testing.T) {
	m := NewMutex()
	m.Lock(1)
	err := m.Unlock(2)
	assert.ErrorIs(t, err, errors.EPERM)
}

func TestMutexRelockByOwnerPanics(t *testing.T) {
	m := NewMutex()
	m.Lock(1)
	assert.Panics(t, func() { m.Lock(1) })
}

func TestMutexContendedLockWakesInOrder(t *testing.T) {
	m := NewMutex()
	m.Lock(1)

	acquired := make(chan int64, 1)
	go func() {
		m.Lock(2)
		acquired <- 2
	}()

	select {
	case <-acquired:
		t.Fatal("second locker acquired before release")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, m.Unlock(1))

	select {
	case who := <-acquired:
		assert.Equal(t, int64(2), who)
	case <-time.After(time.Second):
		t.Fatal("blocked locker never woke after release")
	}
	require.NoError(t, m.Unlock(2))
}
