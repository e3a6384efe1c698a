package tools

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/hector-pml/classify"
	"github.com/kadirpekel/hector-pml/config"
	"github.com/kadirpekel/hector-pml/invoker"
	"github.com/kadirpekel/hector-pml/workflow"
)

func newTestRegistry(t *testing.T) *ToolRegistry {
	t.Helper()
	reg := NewToolRegistry()
	local := NewLocalToolRepository("local")
	if err := local.RegisterTool(NewCommandTool(&config.CommandToolsConfig{
		AllowedCommands:  []string{"echo"},
		WorkingDirectory: ".",
		EnableSandboxing: true,
	})); err != nil {
		t.Fatalf("RegisterTool: %v", err)
	}
	if err := reg.RegisterRepository(local); err != nil {
		t.Fatalf("RegisterRepository: %v", err)
	}
	return reg
}

func TestLocalTransportCall(t *testing.T) {
	transport := NewLocalTransport(newTestRegistry(t))

	out, err := transport.Call(context.Background(), "local:execute_command",
		map[string]any{"command": "echo hi"}, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out == nil {
		t.Fatal("expected non-nil output")
	}
}

func TestLocalTransportCallUnknownTool(t *testing.T) {
	transport := NewLocalTransport(newTestRegistry(t))

	_, err := transport.Call(context.Background(), "local:missing", nil, time.Now().Add(time.Second))
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}

func TestSplitToolID(t *testing.T) {
	cases := []struct {
		in           string
		server, name string
	}{
		{"local:execute_command", "local", "execute_command"},
		{"execute_command", "", "execute_command"},
	}
	for _, c := range cases {
		server, name := splitToolID(c.in)
		if server != c.server || name != c.name {
			t.Fatalf("splitToolID(%q) = (%q, %q), want (%q, %q)", c.in, server, name, c.server, c.name)
		}
	}
}

// TestInvokerThroughLocalTransport exercises the full tool_call path:
// invoker.Invoker calling through tools.LocalTransport into an in-process
// ToolRegistry, the composition workflow.Controller drives when no remote
// transport is configured.
func TestInvokerThroughLocalTransport(t *testing.T) {
	transport := NewLocalTransport(newTestRegistry(t))
	inv := invoker.New(transport)

	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindToolCall,
		Tool: "local:execute_command",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := inv.Execute(ctx, task, map[string]any{"command": "echo from-task"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != workflow.StatusSuccess {
		t.Fatalf("expected success, got status %q error %v", result.Status, result.Error)
	}
}

func TestInvokerThroughLocalTransportToolRejection(t *testing.T) {
	transport := NewLocalTransport(newTestRegistry(t))
	inv := invoker.New(transport)

	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindToolCall,
		Tool: "local:execute_command",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := inv.Execute(ctx, task, map[string]any{"command": "rm -rf /"}, nil)
	if err == nil {
		t.Fatal("expected an error for a disallowed command")
	}
	if result.Status != workflow.StatusError {
		t.Fatalf("expected error status, got %q", result.Status)
	}
	if result.Error == nil || result.Error.Kind != string(classify.ToolRejected) {
		t.Fatalf("expected tool_rejected classification, got %+v", result.Error)
	}
}
