package resolver

import (
	"testing"

	"github.com/kadirpekel/hector-pml/workflow"
)

func TestResolveLiteral(t *testing.T) {
	r := New()
	state := workflow.NewWorkflowState("wf")
	task := workflow.Task{ID: "t1", Arguments: map[string]workflow.ArgSpec{
		"greeting": workflow.Literal("hi"),
	}}

	args, err := r.Resolve(state, task)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if args["greeting"] != "hi" {
		t.Errorf("greeting = %v, want %q", args["greeting"], "hi")
	}
}

// TestResolveParameterUsesInitialContext verifies a Parameter argument
// resolves against InitialContext, not Context, so a parameter and a task
// output sharing a name never collide.
func TestResolveParameterUsesInitialContext(t *testing.T) {
	r := New()
	state := workflow.NewWorkflowState("wf")
	state = workflow.Reduce(state, workflow.StateUpdate{Kind: workflow.UpdateInitialContext, ContextKey: "user_id", ContextVal: "u-1"})
	state = workflow.Reduce(state, workflow.StateUpdate{Kind: workflow.UpdateTaskResult, TaskResult: workflow.TaskResult{
		TaskID: "user_id", Status: workflow.StatusSuccess, Output: "task-output-not-the-parameter",
	}})

	task := workflow.Task{ID: "t1", Arguments: map[string]workflow.ArgSpec{
		"id": workflow.Parameter("user_id"),
	}}

	args, err := r.Resolve(state, task)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if args["id"] != "u-1" {
		t.Errorf("id = %v, want the initial-context parameter value %q, not the task output", args["id"], "u-1")
	}
}

// TestResolveReferenceUsesContext verifies a Reference argument resolves
// against Context (task outputs), not InitialContext.
func TestResolveReferenceUsesContext(t *testing.T) {
	r := New()
	state := workflow.NewWorkflowState("wf")
	state = workflow.Reduce(state, workflow.StateUpdate{Kind: workflow.UpdateTaskResult, TaskResult: workflow.TaskResult{
		TaskID: "t0", Status: workflow.StatusSuccess, Output: map[string]any{"content": "result"},
	}})

	task := workflow.Task{ID: "t1", DependsOn: []string{"t0"}, Arguments: map[string]workflow.ArgSpec{
		"text": workflow.Reference("t0", "content"),
	}}

	args, err := r.Resolve(state, task)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if args["text"] != "result" {
		t.Errorf("text = %v, want %q", args["text"], "result")
	}
}

// TestResolveReferenceUnexecuted verifies a Reference to a task that has
// not produced a result yet reports ReasonUnexecuted.
func TestResolveReferenceUnexecuted(t *testing.T) {
	r := New()
	state := workflow.NewWorkflowState("wf")
	task := workflow.Task{ID: "t1", DependsOn: []string{"t0"}, Arguments: map[string]workflow.ArgSpec{
		"text": workflow.Reference("t0", ""),
	}}

	_, err := r.Resolve(state, task)
	if err == nil {
		t.Fatal("expected an error")
	}
	var uerr *UnresolvableError
	if !unwrapUnresolvable(err, &uerr) {
		t.Fatalf("expected *UnresolvableError, got %T: %v", err, err)
	}
	if uerr.Reason != ReasonUnexecuted {
		t.Errorf("Reason = %q, want %q", uerr.Reason, ReasonUnexecuted)
	}
}

// TestResolveParameterMissing verifies a Parameter the caller never
// supplied reports ReasonMissingParameter.
func TestResolveParameterMissing(t *testing.T) {
	r := New()
	state := workflow.NewWorkflowState("wf")
	task := workflow.Task{ID: "t1", Arguments: map[string]workflow.ArgSpec{
		"id": workflow.Parameter("user_id"),
	}}

	_, err := r.Resolve(state, task)
	if err == nil {
		t.Fatal("expected an error")
	}
	var uerr *UnresolvableError
	if !unwrapUnresolvable(err, &uerr) {
		t.Fatalf("expected *UnresolvableError, got %T: %v", err, err)
	}
	if uerr.Reason != ReasonMissingParameter {
		t.Errorf("Reason = %q, want %q", uerr.Reason, ReasonMissingParameter)
	}
}

func unwrapUnresolvable(err error, out **UnresolvableError) bool {
	for err != nil {
		if u, ok := err.(*UnresolvableError); ok {
			*out = u
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
