// Package invoker implements C6, the tool invocation boundary between a
// workflow.Task of kind tool_call and a transport.ToolTransport. It
// enforces the task's deadline and classifies whatever error the
// transport returns into the closed taxonomy (C15); the layer-level retry
// policy of §7 is applied by workflow.Controller, which wraps any
// TaskExecutor (this one included) uniformly across tool_call and
// code_exec tasks.
//
// Grounded on llms/anthropic.go's classify-then-decide shape (there, HTTP
// status codes feed a RetryStrategy; here, a transport error feeds
// classify.Classify) and tools/interfaces.go's Tool/ToolResult contract.
package invoker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/hector-pml/classify"
	"github.com/kadirpekel/hector-pml/workflow"
)

// DefaultDeadline bounds a single tool_call attempt when the caller's
// context carries no earlier deadline.
const DefaultDeadline = 30 * time.Second

// Invoker adapts a workflow.ToolTransport into a workflow.TaskExecutor for
// tool_call tasks. code_exec tasks are rejected; compose Invoker with
// sandbox.Executor via a small dispatcher (see Dispatch) to get a single
// TaskExecutor that handles both kinds.
type Invoker struct {
	transport workflow.ToolTransport
}

// New returns an Invoker calling through transport.
func New(transport workflow.ToolTransport) *Invoker {
	return &Invoker{transport: transport}
}

// Execute implements workflow.TaskExecutor for tool_call tasks.
func (i *Invoker) Execute(ctx context.Context, task workflow.Task, args map[string]any, _ map[string]workflow.TaskResult) (workflow.TaskResult, error) {
	if task.Kind != workflow.KindToolCall {
		return workflow.TaskResult{}, classify.New(classify.Validation, "invoker", "Execute",
			fmt.Sprintf("invoker cannot execute task kind %q", task.Kind), nil)
	}
	if task.Tool == "" {
		return workflow.TaskResult{}, classify.New(classify.Validation, "invoker", "Execute", "task has no tool set", nil)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultDeadline)
	}

	start := time.Now()
	out, err := i.transport.Call(ctx, task.Tool, args, deadline)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		kind := classify.Classify(err)
		if rejected(err) {
			kind = classify.ToolRejected
		}
		return workflow.TaskResult{
			TaskID:     task.ID,
			Status:     workflow.StatusError,
			Error:      &workflow.TaskError{Kind: string(kind), Message: err.Error()},
			DurationMS: duration,
		}, classify.New(kind, "invoker", "Execute", "tool call failed", err)
	}

	return workflow.TaskResult{
		TaskID:     task.ID,
		Status:     workflow.StatusSuccess,
		Output:     out,
		DurationMS: duration,
	}, nil
}

// rejected reports whether err represents an explicit tool-side rejection
// (as opposed to a transport-level failure), based on a transport-agnostic
// marker substring adapters are expected to include in such errors.
func rejected(err error) bool {
	return strings.Contains(err.Error(), "tool_rejected")
}

// Dispatch composes a tool_call executor and a code_exec executor into a
// single workflow.TaskExecutor that routes by task.Kind, the shape
// workflow.Controller expects.
type Dispatch struct {
	ToolCall workflow.TaskExecutor
	CodeExec workflow.TaskExecutor
}

func (d Dispatch) Execute(ctx context.Context, task workflow.Task, args map[string]any, deps map[string]workflow.TaskResult) (workflow.TaskResult, error) {
	switch task.Kind {
	case workflow.KindToolCall:
		return d.ToolCall.Execute(ctx, task, args, deps)
	case workflow.KindCodeExec:
		return d.CodeExec.Execute(ctx, task, args, deps)
	default:
		return workflow.TaskResult{}, classify.New(classify.Validation, "invoker", "Dispatch.Execute",
			fmt.Sprintf("unknown task kind %q", task.Kind), nil)
	}
}
