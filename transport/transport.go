// Package transport provides workflow.ToolTransport implementations: the
// wire-protocol adapters a deployed PML core calls through to actually
// invoke a tool_call task (MCP by default, and gRPC for services that
// expose a fixed tool-call RPC).
//
// Grounded on tools/interfaces.go's ToolSource/Tool interface split,
// collapsed here into the single Call method workflow.ToolTransport
// requires.
package transport

import (
	"context"
	"fmt"
	"time"
)

// Result is the plain JSON-representable value a Call returns on success;
// adapters decode their wire-specific response shape into this before
// returning, so workflow never depends on a wire format.
type Result = any

// CallError carries a tool-side rejection (as opposed to a transport
// failure), so invoker.rejected can recognize it and classify it as
// tool_rejected rather than runtime/network.
type CallError struct {
	Tool    string
	Message string
	Rejected bool
}

func (e *CallError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("tool_rejected: %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// splitToolName splits a "server:name" tool identifier into its server
// and tool parts, the addressing scheme §3's Task.tool field uses.
func splitToolName(tool string) (server, name string, err error) {
	for i := 0; i < len(tool); i++ {
		if tool[i] == ':' {
			return tool[:i], tool[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("tool %q is not in \"server:name\" form", tool)
}

// withDeadline returns a context bounded by deadline, or ctx unmodified
// when deadline is zero. A deadline later than ctx's own leaves ctx's
// earlier one in force, as context.WithDeadline does.
func withDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}
