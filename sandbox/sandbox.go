package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kadirpekel/hector-pml/classify"
	"github.com/kadirpekel/hector-pml/workflow"
)

// Executor implements workflow.TaskExecutor for code_exec tasks: it scans
// the task's source, parses it into a Program, and evaluates it against
// the task's resolved arguments and its dependencies' results (exposed to
// a get instruction under the synthetic path "deps.<task_id>.status", per
// §7's requirement that failed_safe dependency status be visible to the
// code).
type Executor struct {
	transport     workflow.ToolTransport
	workspaceRoot string
}

// New returns an Executor that calls out to transport for call_mcp
// instructions and confines read_file/write_file instructions to
// workspaceRoot. transport may be nil if the deployment's code_exec tasks
// never call tools. workspaceRoot may be empty, in which case
// read_file/write_file are refused entirely (deny-by-default, per §4.7).
func New(transport workflow.ToolTransport, workspaceRoot string) *Executor {
	return &Executor{transport: transport, workspaceRoot: workspaceRoot}
}

func (e *Executor) Execute(ctx context.Context, task workflow.Task, args map[string]any, deps map[string]workflow.TaskResult) (workflow.TaskResult, error) {
	if task.Kind != workflow.KindCodeExec {
		return workflow.TaskResult{}, classify.New(classify.Validation, "sandbox", "Execute",
			fmt.Sprintf("sandbox cannot execute task kind %q", task.Kind), nil)
	}

	if err := Scan(task.Code); err != nil {
		return workflow.TaskResult{
			TaskID: task.ID,
			Status: failSafeOr(task, workflow.StatusFailedSafe),
			Error:  &workflow.TaskError{Kind: string(classify.Permission), Message: err.Error()},
		}, err
	}

	program, err := ParseProgram(task.Code)
	if err != nil {
		return workflow.TaskResult{
			TaskID: task.ID,
			Status: failSafeOr(task, workflow.StatusFailedSafe),
			Error:  &workflow.TaskError{Kind: string(classify.Validation), Message: err.Error()},
		}, nil
	}

	values := make([]any, len(program.Instructions))
	env := newEnv(args, deps)

	for i, ins := range program.Instructions {
		v, err := e.step(ctx, ins, values, env)
		if err != nil {
			return workflow.TaskResult{
				TaskID: task.ID,
				Status: failSafeOr(task, workflow.StatusFailedSafe),
				Error:  &workflow.TaskError{Kind: string(classify.Runtime), Message: err.Error()},
			}, err
		}
		values[i] = v
	}

	return workflow.TaskResult{
		TaskID: task.ID,
		Status: workflow.StatusSuccess,
		Output: values[program.Result],
	}, nil
}

// failSafeOr returns StatusFailedSafe when task has no side effects
// (§7: a failed_safe task does not halt the workflow), and StatusError
// otherwise so the controller treats it as fatal.
func failSafeOr(task workflow.Task, onSafe workflow.Status) workflow.Status {
	if task.SideEffects {
		return workflow.StatusError
	}
	return onSafe
}

// env bundles the two sources an instruction program may read from: its
// resolved arguments and its dependencies' results (projected so
// "deps.<id>.status" resolves without exposing anything else about the
// dependency's output).
type env struct {
	args map[string]any
	deps map[string]string // task id -> status string
}

func newEnv(args map[string]any, deps map[string]workflow.TaskResult) env {
	e := env{args: args, deps: map[string]string{}}
	for id, r := range deps {
		e.deps[id] = string(r.Status)
	}
	return e
}

func (e *Executor) step(ctx context.Context, ins Instruction, values []any, en env) (any, error) {
	switch ins.Op {
	case OpLiteral:
		return ins.Value, nil
	case OpGet:
		return project(values[ins.Ref], ins.Path, en)
	case OpConstructObj:
		out := make(map[string]any, len(ins.Fields))
		for field, ref := range ins.Fields {
			out[field] = values[ref]
		}
		return out, nil
	case OpCallMCP:
		if e.transport == nil {
			return nil, fmt.Errorf("call_mcp instruction but no transport configured")
		}
		callArgs := make(map[string]any, len(ins.Args))
		for name, ref := range ins.Args {
			callArgs[name] = values[ref]
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(30 * time.Second)
		}
		return e.transport.Call(ctx, ins.Tool, callArgs, deadline)
	case OpReadFile:
		path, err := e.confine(ins.Path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read_file %q: %w", ins.Path, err)
		}
		return string(data), nil
	case OpWriteFile:
		path, err := e.confine(ins.Path)
		if err != nil {
			return nil, err
		}
		content, ok := values[ins.Ref].(string)
		if !ok {
			return nil, fmt.Errorf("write_file %q: referenced value is not a string", ins.Path)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write_file %q: %w", ins.Path, err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown op %q", ins.Op)
	}
}

// confine resolves a workspace-relative path against e.workspaceRoot and
// rejects anything that would read or write outside it, mirroring
// tools/file_writer.go's validatePath: no absolute paths, no ".." traversal,
// and the resolved path must remain under the workspace root. Returns an
// error unconditionally when no workspace root is configured.
func (e *Executor) confine(path string) (string, error) {
	if e.workspaceRoot == "" {
		return "", fmt.Errorf("read_file/write_file: no workspace root configured")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("read_file/write_file: absolute paths not allowed: %q", path)
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("read_file/write_file: path escapes workspace root: %q", path)
	}

	absRoot, err := filepath.Abs(e.workspaceRoot)
	if err != nil {
		return "", fmt.Errorf("read_file/write_file: invalid workspace root: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absRoot, cleaned))
	if err != nil {
		return "", fmt.Errorf("read_file/write_file: invalid path: %w", err)
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("read_file/write_file: path escapes workspace root: %q", path)
	}
	return absPath, nil
}

// project resolves a dotted path against v, with the special prefix
// "deps." resolved against en.deps instead of v.
func project(v any, path string, en env) (any, error) {
	if rest, ok := strings.CutPrefix(path, "deps."); ok {
		parts := strings.SplitN(rest, ".", 2)
		if len(parts) == 2 && parts[1] == "status" {
			return en.deps[parts[0]], nil
		}
		return nil, fmt.Errorf("unsupported deps path %q", path)
	}

	cur := v
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot project %q: not an object at %q", path, part)
		}
		cur, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("path %q: no field %q", path, part)
		}
	}
	return cur, nil
}
