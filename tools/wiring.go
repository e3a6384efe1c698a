package tools

import (
	"github.com/kadirpekel/hector-pml/invoker"
	"github.com/kadirpekel/hector-pml/workflow"
)

// NewToolCallExecutor adapts registry into the workflow.TaskExecutor a
// Controller dispatches tool_call tasks to, by composing it behind a
// LocalTransport and package invoker's deadline/classification boundary.
// This is the in-process counterpart to a remote transport.ToolTransport:
// a host that keeps its tools in a single process (no MCP server or other
// RPC boundary) wires its TransportRegistry to NewLocalTransport(registry)
// via this constructor instead.
func NewToolCallExecutor(registry *ToolRegistry) workflow.TaskExecutor {
	return invoker.New(NewLocalTransport(registry))
}
