// Package debugapi exposes kernel introspection (runqueue, zone, and
// IPC snapshots) over gRPC for out-of-process test harnesses, per
// SPEC_FULL.md's domain stack. There is no protoc step in this
// pack — messages are google.protobuf.Struct (structpb) values, and the
// service is wired up by hand-writing the grpc.ServiceDesc a protoc
// plugin would otherwise generate, the same mechanism generated stubs
// rely on internally.
package debugapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Source is implemented by the kernel boot harness (cmd/kernel) and
// supplies the raw snapshot data this service serializes to structpb.
type Source interface {
	RunqueueSnapshot() map[string]any
	ZoneSnapshot() map[string]any
	IPCSnapshot() map[string]any
}

// Server is the DebugService gRPC server implementation.
type Server struct {
	UnimplementedDebugServiceServer
	source Source
}

// NewServer wraps source for serving over gRPC.
func NewServer(source Source) *Server {
	return &Server{source: source}
}

// RunqueueSnapshot returns the current tick, running task, and admitted
// periodic set as a structpb.Struct.
func (s *Server) RunqueueSnapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(s.source.RunqueueSnapshot())
}

// ZoneSnapshot returns per-zone buddy allocator occupancy.
func (s *Server) ZoneSnapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(s.source.ZoneSnapshot())
}

// IPCSnapshot returns semaphore/message-queue/shared-memory table
// occupancy.
func (s *Server) IPCSnapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(s.source.IPCSnapshot())
}

// DebugServiceServer is the server-side interface a protoc-gen-go-grpc
// plugin would normally generate from a .proto file.
type DebugServiceServer interface {
	RunqueueSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ZoneSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IPCSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedDebugServiceServer can be embedded to satisfy
// DebugServiceServer without implementing every method, matching the
// forward-compatibility convention generated grpc code uses.
type UnimplementedDebugServiceServer struct{}

func (UnimplementedDebugServiceServer) RunqueueSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, grpcUnimplemented("RunqueueSnapshot")
}

func (UnimplementedDebugServiceServer) ZoneSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, grpcUnimplemented("ZoneSnapshot")
}

func (UnimplementedDebugServiceServer) IPCSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, grpcUnimplemented("IPCSnapshot")
}

// RegisterDebugServiceServer installs srv into gs using the hand-built
// ServiceDesc below, the same entry point generated code exposes.
func RegisterDebugServiceServer(gs *grpc.Server, srv DebugServiceServer) {
	gs.RegisterService(&debugServiceServiceDesc, srv)
}

var debugServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "eduos.debugapi.v1.DebugService",
	HandlerType: (*DebugServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunqueueSnapshot", Handler: handleRunqueueSnapshot},
		{MethodName: "ZoneSnapshot", Handler: handleZoneSnapshot},
		{MethodName: "IPCSnapshot", Handler: handleIPCSnapshot},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/debugapi/service.go",
}

func handleRunqueueSnapshot(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DebugServiceServer).RunqueueSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eduos.debugapi.v1.DebugService/RunqueueSnapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DebugServiceServer).RunqueueSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func handleZoneSnapshot(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DebugServiceServer).ZoneSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eduos.debugapi.v1.DebugService/ZoneSnapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DebugServiceServer).ZoneSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func handleIPCSnapshot(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DebugServiceServer).IPCSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eduos.debugapi.v1.DebugService/IPCSnapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DebugServiceServer).IPCSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
