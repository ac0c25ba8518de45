package debugapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeSource struct {
	runqueue map[string]any
	zone     map[string]any
	ipc      map[string]any
}

func (f *fakeSource) RunqueueSnapshot() map[string]any { return f.runqueue }
func (f *fakeSource) ZoneSnapshot() map[string]any     { return f.zone }
func (f *fakeSource) IPCSnapshot() map[string]any      { return f.ipc }

func TestServerRunqueueSnapshotMarshalsSourceData(t *testing.T) {
	src := &fakeSource{runqueue: map[string]any{"tick": float64(42), "current_pid": float64(7)}}
	srv := NewServer(src)

	got, err := srv.RunqueueSnapshot(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, float64(42), got.Fields["tick"].GetNumberValue())
	assert.Equal(t, float64(7), got.Fields["current_pid"].GetNumberValue())
}

func TestServerZoneAndIPCSnapshots(t *testing.T) {
	src := &fakeSource{
		zone: map[string]any{"normal_free_frames": float64(100)},
		ipc:  map[string]any{"semaphore_sets": float64(2)},
	}
	srv := NewServer(src)

	zone, err := srv.ZoneSnapshot(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, float64(100), zone.Fields["normal_free_frames"].GetNumberValue())

	ipc, err := srv.IPCSnapshot(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, float64(2), ipc.Fields["semaphore_sets"].GetNumberValue())
}

func TestUnimplementedServerReturnsUnimplementedError(t *testing.T) {
	var base UnimplementedDebugServiceServer
	_, err := base.RunqueueSnapshot(context.Background(), &structpb.Struct{})
	assert.Error(t, err)
}
