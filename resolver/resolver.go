// Package resolver implements C8: projecting a workflow.Task's ArgSpec
// map into a plain map[string]any ready for invocation, resolving
// Reference entries via JSONPath-ish dotted projection against prior
// tasks' outputs (held in workflow.WorkflowState.Context) and Parameter
// entries against the workflow's initial context.
package resolver

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/hector-pml/workflow"
)

// Resolver implements workflow.ArgResolver.
type Resolver struct{}

// New returns a Resolver. It holds no state: resolution is a pure
// function of the task and the current WorkflowState.
func New() *Resolver { return &Resolver{} }

func (r *Resolver) Resolve(state workflow.WorkflowState, task workflow.Task) (map[string]any, error) {
	out := make(map[string]any, len(task.Arguments))
	for name, spec := range task.Arguments {
		v, err := resolveOne(state, spec)
		if err != nil {
			return nil, fmt.Errorf("[resolver:Resolve] task %q argument %q: %w", task.ID, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// UnresolvableReason distinguishes why resolveOne could not produce a
// value, per §4.8: a Reference to a task that simply hasn't run yet is a
// different situation from a Parameter the caller never supplied, and
// callers that log or learn from resolution failures need to tell them
// apart rather than seeing one generic error.
type UnresolvableReason string

const (
	ReasonUnexecuted       UnresolvableReason = "unexecuted"
	ReasonMissingParameter UnresolvableReason = "missing_parameter"
)

// UnresolvableError is the structured failure resolveOne returns instead of
// a bare fmt.Errorf, so a caller can branch on Reason.
type UnresolvableError struct {
	Reason UnresolvableReason
	Detail string
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("unresolvable (%s): %s", e.Reason, e.Detail)
}

func resolveOne(state workflow.WorkflowState, spec workflow.ArgSpec) (any, error) {
	switch spec.Kind {
	case workflow.ArgLiteral:
		return spec.Value, nil
	case workflow.ArgParameter:
		v, ok := state.InitialContext[spec.Name]
		if !ok {
			return nil, &UnresolvableError{Reason: ReasonMissingParameter,
				Detail: fmt.Sprintf("parameter %q not found in initial context", spec.Name)}
		}
		return v, nil
	case workflow.ArgReference:
		v, ok := state.Context[spec.TaskID]
		if !ok {
			return nil, &UnresolvableError{Reason: ReasonUnexecuted,
				Detail: fmt.Sprintf("task %q has not produced a result yet", spec.TaskID)}
		}
		return projectPath(v, spec.JSONPath)
	default:
		return nil, fmt.Errorf("unknown arg kind %q", spec.Kind)
	}
}

// projectPath applies a dotted JSON-path projection ("content",
// "a.b.c") to v. An empty path returns v unmodified (the whole output).
func projectPath(v any, path string) (any, error) {
	if path == "" {
		return v, nil
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot project %q: value at %q is not an object", path, part)
		}
		next, ok := m[part]
		if !ok {
			return nil, fmt.Errorf("path %q: no field %q", path, part)
		}
		cur = next
	}
	return cur, nil
}
