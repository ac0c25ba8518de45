package task

import (
	"testing"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDZeroReserved(t *testing.T) {
	a := NewPIDAllocator(4)
	for i := 0; i < 3; i++ {
		pid, err := a.Alloc()
		require.NoError(t, err)
		assert.NotEqual(t, 0, pid)
	}
}

func TestPIDAllocExhaustionThenFree(t *testing.T) {
	a := NewPIDAllocator(4) // valid pids: 1,2,3
	p1, err := a.Alloc()
	require.NoError(t, err)
	p2, err := a.Alloc()
	require.NoError(t, err)
	p3, err := a.Alloc()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, []int{p1, p2, p3})

	_, err = a.Alloc()
	assert.ErrorIs(t, err, errors.ENOMEM)

	a.Free(p2)
	reused, err := a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, p2, reused)
}

func TestPIDAllocScansFromLastIssued(t *testing.T) {
	a := NewPIDAllocator(8)
	first, err := a.Alloc()
	require.NoError(t, err)
	second, err := a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}
