package vmem

import (
	"testing"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapUnmapRoundTrip(t *testing.T) {
	s, err := New(2, 16)
	require.NoError(t, err)

	src := []byte("hello world!")
	w, err := s.Map(src)
	require.NoError(t, err)
	assert.Equal(t, src, w.Data())

	dst := make([]byte, len(src))
	s.Unmap(w, dst)
	assert.Equal(t, src, dst)
}

func TestMapExhaustionReturnsEAGAIN(t *testing.T) {
	s, err := New(1, 16)
	require.NoError(t, err)

	w, err := s.Map([]byte("x"))
	require.NoError(t, err)

	_, err = s.Map([]byte("y"))
	assert.ErrorIs(t, err, errors.EAGAIN)

	s.Unmap(w, make([]byte, 1))
	_, err = s.Map([]byte("z"))
	assert.NoError(t, err)
}

func TestCopyUserToUser(t *testing.T) {
	s, err := New(1, 64)
	require.NoError(t, err)

	src := []byte("payload")
	dst := make([]byte, len(src))
	require.NoError(t, s.CopyUserToUser(dst, src))
	assert.Equal(t, src, dst)
}
