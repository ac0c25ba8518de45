package waitqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeIsFIFO(t *testing.T) {
	var h Head
	e1 := NewEntry(1, false)
	e2 := NewEntry(2, false)
	h.Add(e1)
	h.Add(e2)

	require.True(t, h.Wake())
	select {
	case <-e1.woken:
	default:
		t.Fatal("expected e1 to be woken first")
	}
	assert.Equal(t, 1, h.Len())
}

func TestWakeAllRespectsExclusive(t *testing.T) {
	var h Head
	excl1 := NewEntry(1, true)
	excl2 := NewEntry(2, true)
	plain := NewEntry(3, false)
	h.Add(excl1)
	h.Add(excl2)
	h.Add(plain)

	h.WakeAll()

	woken := func(e *Entry) bool {
		select {
		case <-e.woken:
			return true
		default:
			return false
		}
	}
	assert.True(t, woken(plain))
	count := 0
	if woken(excl1) {
		count++
	}
	if woken(excl2) {
		count++
	}
	assert.Equal(t, 1, count, "only one exclusive waiter should be woken")
	assert.Equal(t, 1, h.Len(), "the un-woken exclusive waiter stays queued")
}

func TestRemoveCancelsWithoutWaking(t *testing.T) {
	var h Head
	e := NewEntry(1, false)
	h.Add(e)
	h.Remove(e)
	assert.Equal(t, 0, h.Len())

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("entry should not have been woken")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestOneTaskOnAtMostOneQueue(t *testing.T) {
	// Documents the invariant: moving an entry between heads requires an
	// explicit Remove before Add elsewhere; Add never implicitly detaches
	// from a prior head.
	var h1, h2 Head
	e := NewEntry(1, false)
	h1.Add(e)
	h1.Remove(e)
	h2.Add(e)
	assert.Equal(t, 0, h1.Len())
	assert.Equal(t, 1, h2.Len())
}
