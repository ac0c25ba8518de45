package klock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinlockTryLockFailsWhileHeld(t *testing.T) {
	var sl Spinlock
	require := assert.New(t)
	require.True(sl.TryLock())
	require.False(sl.TryLock())
	sl.Unlock()
	require.True(sl.TryLock())
}

func TestSpinlockUnlockOfFreeLockPanics(t *testing.T) {
	var sl Spinlock
	assert.Panics(t, func() { sl.Unlock() })
}

func TestSpinlockSerializesConcurrentIncrement(t *testing.T) {
	var sl Spinlock
	counter := 0
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sl.Lock()
			counter++
			sl.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, n, counter)
}
