package blockio

import (
	"testing"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteZeroLengthIsNoop(t *testing.T) {
	dev := newTestDevice(t)
	n, err := dev.Write(100, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = dev.Read(100, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadWriteOffsetOverflowReturnsEOVERFLOW(t *testing.T) {
	dev := newTestDevice(t)
	buf := make([]byte, 16)
	_, err := dev.Read(^uint64(0)-3, 16, buf)
	assert.ErrorIs(t, err, errors.EOVERFLOW)

	_, err = dev.Write(^uint64(0)-3, 16, buf)
	assert.ErrorIs(t, err, errors.EOVERFLOW)
}

func TestReadWriteShortBufferReturnsEINVAL(t *testing.T) {
	dev := newTestDevice(t)
	buf := make([]byte, 4)
	_, err := dev.Read(0, 16, buf)
	assert.ErrorIs(t, err, errors.EINVAL)

	_, err = dev.Write(0, 16, buf)
	assert.ErrorIs(t, err, errors.EINVAL)
}

func TestWriteThenReadSpanningMultipleSectorsAligned(t *testing.T) {
	dev := newTestDevice(t)
	data := make([]byte, SectorSize*3)
	for i := range data {
		data[i] = byte(i % 251)
	}

	n, err := dev.Write(0, uint64(len(data)), data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	got := make([]byte, len(data))
	n, err = dev.Read(0, uint64(len(got)), got)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, got)
}

func TestWriteUnalignedPrefixAndPostfixPreservesNeighboringBytes(t *testing.T) {
	dev := newTestDevice(t)

	// Seed two whole sectors with a known pattern.
	seed := make([]byte, SectorSize*2)
	for i := range seed {
		seed[i] = 0xAA
	}
	_, err := dev.Write(0, uint64(len(seed)), seed)
	require.NoError(t, err)

	// Write 20 bytes straddling the sector boundary at offset SectorSize-10.
	patch := make([]byte, 20)
	for i := range patch {
		patch[i] = byte(0x55)
	}
	off := uint64(SectorSize - 10)
	_, err = dev.Write(off, uint64(len(patch)), patch)
	require.NoError(t, err)

	full := make([]byte, SectorSize*2)
	_, err = dev.Read(0, uint64(len(full)), full)
	require.NoError(t, err)

	// Bytes before the patch are untouched.
	for i := uint64(0); i < off; i++ {
		assert.Equal(t, byte(0xAA), full[i], "byte %d before patch", i)
	}
	// Patched region matches.
	assert.Equal(t, patch, full[off:off+uint64(len(patch))])
	// Bytes after the patch are untouched.
	for i := off + uint64(len(patch)); i < uint64(len(full)); i++ {
		assert.Equal(t, byte(0xAA), full[i], "byte %d after patch", i)
	}
}

func TestReadPartialSectorAtNonZeroOffset(t *testing.T) {
	dev := newTestDevice(t)
	sector := make([]byte, SectorSize)
	for i := range sector {
		sector[i] = byte(i)
	}
	require.NoError(t, dev.WriteSector(7, sector))

	buf := make([]byte, 6)
	n, err := dev.Read(7*SectorSize+100, 6, buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, sector[100:106], buf)
}
