// Package workflow implements the PML's task/DAG model (C1), event stream
// (C2), command queue (C3), workflow-state reducers (C4), and the
// controlled executor (C13) that orchestrates them.
//
// The field-tagging conventions below (JSON tags, plain exported structs)
// follow the teacher's workflow.WorkflowRequest/AgentResult shape, adapted
// from an agent-step model to a tool/code task model.
package workflow

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind distinguishes the two task variants a DAG can contain.
type Kind string

const (
	KindToolCall Kind = "tool_call"
	KindCodeExec Kind = "code_exec"
)

// CheckpointPolicy controls whether a layer boundary after this task
// requires an agent- or human-in-the-loop decision before continuing.
type CheckpointPolicy string

const (
	CheckpointNone CheckpointPolicy = "none"
	CheckpointAIL  CheckpointPolicy = "ail"
	CheckpointHIL  CheckpointPolicy = "hil"
)

// ArgKind distinguishes the three ArgSpec variants.
type ArgKind string

const (
	ArgLiteral   ArgKind = "literal"
	ArgReference ArgKind = "reference"
	ArgParameter ArgKind = "parameter"
)

// ArgSpec is a tagged union: exactly one of Literal, Reference, or
// Parameter applies, selected by Kind.
type ArgSpec struct {
	Kind ArgKind `json:"kind"`

	// Literal: Value is any JSON-serializable term.
	Value any `json:"value,omitempty"`

	// Reference: resolved from a prior task's output via JSONPath.
	TaskID   string `json:"task_id,omitempty"`
	JSONPath string `json:"json_path,omitempty"`

	// Parameter: resolved from the workflow's initial context.
	Name string `json:"name,omitempty"`
}

// Literal constructs an ArgSpec holding a literal value.
func Literal(v any) ArgSpec { return ArgSpec{Kind: ArgLiteral, Value: v} }

// Reference constructs an ArgSpec resolved from task taskID's output.
func Reference(taskID, jsonPath string) ArgSpec {
	return ArgSpec{Kind: ArgReference, TaskID: taskID, JSONPath: jsonPath}
}

// Parameter constructs an ArgSpec resolved from the initial context.
func Parameter(name string) ArgSpec { return ArgSpec{Kind: ArgParameter, Name: name} }

// Task is immutable once admitted to a DAG.
type Task struct {
	ID          string             `json:"id"`
	Kind        Kind               `json:"kind"`
	Tool        string             `json:"tool,omitempty"` // "server:name", tool_call only
	Code        string             `json:"code,omitempty"` // source text, code_exec only
	Arguments   map[string]ArgSpec `json:"arguments,omitempty"`
	DependsOn   []string           `json:"depends_on,omitempty"`
	SideEffects bool               `json:"side_effects"`
	Priority    int                `json:"priority"`
	Checkpoint  CheckpointPolicy   `json:"checkpoint"`
}

// CapabilityID returns the identifier the safety oracle and speculation
// cache key on: the tool id for tool_call tasks, or a code-derived id for
// code_exec tasks, which have no separate tool field and are instead
// identified by the source program they run.
func (t Task) CapabilityID() string {
	if t.Kind == KindCodeExec {
		return "code_exec:" + t.Code
	}
	return t.Tool
}

// DependsOnSet returns DependsOn as a lookup set.
func (t Task) DependsOnSet() map[string]bool {
	set := make(map[string]bool, len(t.DependsOn))
	for _, d := range t.DependsOn {
		set[d] = true
	}
	return set
}

// DAG is a set of tasks with acyclic DependsOn edges.
type DAG struct {
	Tasks []Task `json:"tasks"`
}

// ByID indexes the DAG's tasks by id.
func (d DAG) ByID() map[string]Task {
	idx := make(map[string]Task, len(d.Tasks))
	for _, t := range d.Tasks {
		idx[t.ID] = t
	}
	return idx
}

// ValidationError reports why a DAG was rejected.
type ValidationError struct {
	Reason       string
	ResidualTask []string // populated on cycle detection
}

func (e *ValidationError) Error() string {
	if len(e.ResidualTask) > 0 {
		return fmt.Sprintf("dag validation: %s (residual: %v)", e.Reason, e.ResidualTask)
	}
	return fmt.Sprintf("dag validation: %s", e.Reason)
}

// Validate checks the invariants required by §4.1: every dependency refers
// to a known task id, every Reference(t,_) argument implies t is in
// depends_on, and the graph is acyclic.
func Validate(d DAG) error {
	ids := d.ByID()

	for _, t := range d.Tasks {
		deps := t.DependsOnSet()
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok {
				return &ValidationError{Reason: fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep)}
			}
		}
		for argName, arg := range t.Arguments {
			if arg.Kind == ArgReference {
				if !deps[arg.TaskID] {
					return &ValidationError{Reason: fmt.Sprintf(
						"task %q argument %q references %q which is not in depends_on", t.ID, argName, arg.TaskID)}
				}
			}
		}
	}

	if cyc := detectCycle(d); len(cyc) > 0 {
		return &ValidationError{Reason: "cycle detected", ResidualTask: cyc}
	}
	return nil
}

// detectCycle returns the residual set of task ids that could never reach
// in-degree zero during a Kahn walk — i.e. the tasks participating in (or
// only reachable through) a cycle.
func detectCycle(d DAG) []string {
	indeg := make(map[string]int, len(d.Tasks))
	adj := make(map[string][]string, len(d.Tasks))
	for _, t := range d.Tasks {
		if _, ok := indeg[t.ID]; !ok {
			indeg[t.ID] = 0
		}
		for _, dep := range t.DependsOn {
			indeg[t.ID]++
			adj[dep] = append(adj[dep], t.ID)
		}
	}

	queue := make([]string, 0)
	for id, deg := range indeg {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[cur] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited == len(indeg) {
		return nil
	}
	residual := make([]string, 0, len(indeg)-visited)
	for id, deg := range indeg {
		if deg > 0 {
			residual = append(residual, id)
		}
	}
	return residual
}

// Status is the terminal/non-terminal status of a TaskResult.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusFailedSafe Status = "failed_safe"
	StatusSkipped    Status = "skipped"
)

// TaskError is the structured error attached to a non-success TaskResult.
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// TaskResult is the outcome of executing (or serving from cache/mock) a task.
type TaskResult struct {
	TaskID     string      `json:"task_id"`
	Status     Status      `json:"status"`
	Output     any         `json:"output,omitempty"`
	Error      *TaskError  `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Mocked     bool        `json:"mocked"`
	FromCache  bool        `json:"from_cache"`
}

// NewID generates a unique id, used wherever a caller does not supply one
// (workflow ids, checkpoint ids, trace ids).
func NewID() string { return uuid.NewString() }
