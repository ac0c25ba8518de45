package buddy

import (
	"testing"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	a, err := New(4, []ZoneSpec{{Zone: ZoneNormal, StartPFN: 0, NumFrames: 4}})
	require.NoError(t, err)
	block, err := a.Alloc(0, Flags{Zone: ZoneNormal})
	require.NoError(t, err)

	want := []byte("hello frame")
	require.NoError(t, a.WriteFrame(block.PFN, 16, want))

	got := make([]byte, len(want))
	require.NoError(t, a.ReadFrame(block.PFN, 16, got))
	assert.Equal(t, want, got)
}

func TestReadWriteFrameRejectsOutOfBoundsOffset(t *testing.T) {
	a, err := New(2, []ZoneSpec{{Zone: ZoneNormal, StartPFN: 0, NumFrames: 2}})
	require.NoError(t, err)
	block, err := a.Alloc(0, Flags{Zone: ZoneNormal})
	require.NoError(t, err)

	buf := make([]byte, 16)
	assert.ErrorIs(t, a.ReadFrame(block.PFN, FrameSize-8, buf), errors.EFAULT)
	assert.ErrorIs(t, a.WriteFrame(block.PFN, -1, buf), errors.EFAULT)
}

func TestFramesAreIndependentByPFN(t *testing.T) {
	a, err := New(4, []ZoneSpec{{Zone: ZoneNormal, StartPFN: 0, NumFrames: 4}})
	require.NoError(t, err)
	b1, err := a.Alloc(0, Flags{Zone: ZoneNormal})
	require.NoError(t, err)
	b2, err := a.Alloc(0, Flags{Zone: ZoneNormal})
	require.NoError(t, err)

	require.NoError(t, a.WriteFrame(b1.PFN, 0, []byte("AAAA")))
	require.NoError(t, a.WriteFrame(b2.PFN, 0, []byte("BBBB")))

	buf := make([]byte, 4)
	require.NoError(t, a.ReadFrame(b1.PFN, 0, buf))
	assert.Equal(t, "AAAA", string(buf))
	require.NoError(t, a.ReadFrame(b2.PFN, 0, buf))
	assert.Equal(t, "BBBB", string(buf))
}
