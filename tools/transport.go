package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/hector-pml/workflow"
)

// LocalTransport implements workflow.ToolTransport over an in-process
// ToolRegistry, for tests and single-binary deployments that have no MCP or
// gRPC tool server to call through. A task's Tool field is "server:name";
// LocalTransport ignores the server segment and looks the tool up by name,
// since every tool it can reach lives in the same process.
type LocalTransport struct {
	registry *ToolRegistry
}

// NewLocalTransport wraps registry as a workflow.ToolTransport.
func NewLocalTransport(registry *ToolRegistry) *LocalTransport {
	return &LocalTransport{registry: registry}
}

var _ workflow.ToolTransport = (*LocalTransport)(nil)

// Call implements workflow.ToolTransport. deadline bounds the underlying
// tool's execution; a tool that ignores ctx cancellation still has its
// result discarded once the deadline passes.
func (t *LocalTransport) Call(ctx context.Context, tool string, args map[string]any, deadline time.Time) (any, error) {
	_, name := splitToolID(tool)

	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	result, _ := t.registry.ExecuteTool(callCtx, name, args)
	if err := callCtx.Err(); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("tool_rejected: %s", result.Error)
	}
	if result.Output != nil {
		return result.Output, nil
	}
	return result.Content, nil
}

// splitToolID splits a "server:name" task.Tool into its two segments; a bare
// name (no colon) is treated as having an empty server segment.
func splitToolID(toolID string) (server, name string) {
	if idx := strings.IndexByte(toolID, ':'); idx >= 0 {
		return toolID[:idx], toolID[idx+1:]
	}
	return "", toolID
}
