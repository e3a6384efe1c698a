package transport

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// toolCallMethod is the fixed RPC a GRPCTransport invokes on every
// registered connection; every backing service is expected to expose this
// one method rather than a per-tool generated stub, so GRPCTransport can
// stay generic over arbitrary task.Tool values.
const toolCallMethod = "/pml.tool.v1.ToolService/Call"

// GRPCTransport is a workflow.ToolTransport that looks up a caller-dialed
// gRPC connection by the "server" component of a task's "server:name" tool
// id and invokes a
// fixed dynamic RPC via conn.Invoke, avoiding a generated client stub per
// tool server. Newly written: the teacher's go.mod declares grpc/protobuf
// with no direct consumer in the copied tree; this gives both a home.
type GRPCTransport struct {
	conns map[string]*grpc.ClientConn
}

// NewGRPCTransport returns a transport dispatching to the given
// pre-dialed connections, keyed by server name.
func NewGRPCTransport(conns map[string]*grpc.ClientConn) *GRPCTransport {
	return &GRPCTransport{conns: conns}
}

// Avoiding a generated .pb.go per tool means the request/response must
// already be proto.Message values the default codec can marshal;
// structpb.Struct satisfies that, so the wire envelope is a flat struct
// carrying "name", "arguments", "result", and "error" keys rather than a
// purpose-built message type.
func (t *GRPCTransport) Call(ctx context.Context, tool string, args map[string]any, deadline time.Time) (any, error) {
	server, name, err := splitToolName(tool)
	if err != nil {
		return nil, err
	}

	conn, ok := t.conns[server]
	if !ok {
		return nil, fmt.Errorf("no gRPC connection registered for server %q", server)
	}

	req, err := structpb.NewStruct(map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, fmt.Errorf("arguments are not structpb-representable: %w", err)
	}

	cctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	resp := &structpb.Struct{}
	if err := conn.Invoke(cctx, toolCallMethod, req, resp); err != nil {
		return nil, err
	}
	respMap := resp.AsMap()
	if errMsg, ok := respMap["error"].(string); ok && errMsg != "" {
		return nil, &CallError{Tool: tool, Message: errMsg, Rejected: true}
	}
	return respMap["result"], nil
}
