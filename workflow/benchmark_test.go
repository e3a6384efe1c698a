package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kadirpekel/hector-pml/classify"
)

// fakeExecutor is a minimal TaskExecutor standing in for invoker/sandbox in
// these tests: it always succeeds, echoing the task id in its output.
type fakeExecutor struct {
	delay   time.Duration
	failIDs map[string]bool
}

func (f *fakeExecutor) Execute(_ context.Context, task Task, _ map[string]any, _ map[string]TaskResult) (TaskResult, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failIDs[task.ID] {
		return TaskResult{TaskID: task.ID, Status: StatusError, Error: &TaskError{Kind: "runtime", Message: "forced failure"}}, nil
	}
	return TaskResult{TaskID: task.ID, Status: StatusSuccess, Output: fmt.Sprintf("result from %s", task.ID)}, nil
}

// fakeResolver resolves nothing: every task runs with an empty argument map,
// sufficient for tests that only care about DAG/layer sequencing.
type fakeResolver struct{}

func (fakeResolver) Resolve(WorkflowState, Task) (map[string]any, error) { return map[string]any{}, nil }

func chainDAG(n int) DAG {
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		t := Task{ID: fmt.Sprintf("t%d", i), Kind: KindToolCall, Tool: "mock:tool"}
		if i > 0 {
			t.DependsOn = []string{fmt.Sprintf("t%d", i-1)}
		}
		tasks[i] = t
	}
	return DAG{Tasks: tasks}
}

func fanOutDAG(n int) DAG {
	tasks := make([]Task, 0, n+1)
	tasks = append(tasks, Task{ID: "root", Kind: KindToolCall, Tool: "mock:tool"})
	for i := 0; i < n; i++ {
		tasks = append(tasks, Task{ID: fmt.Sprintf("leaf%d", i), Kind: KindToolCall, Tool: "mock:tool", DependsOn: []string{"root"}})
	}
	return DAG{Tasks: tasks}
}

// TestLayersDeterministic verifies P1: identical DAGs always layer
// identically, with each layer ordered by ascending priority (lower runs
// first) then ascending id.
func TestLayersDeterministic(t *testing.T) {
	dag := DAG{Tasks: []Task{
		{ID: "b", Kind: KindToolCall, Priority: 1},
		{ID: "a", Kind: KindToolCall, Priority: 1},
		{ID: "c", Kind: KindToolCall, Priority: 5},
		{ID: "d", Kind: KindToolCall, DependsOn: []string{"a", "b"}},
	}}

	layers, err := Layers(dag)
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	want := []string{"a", "b", "c"}
	if fmt.Sprint(layers[0].Tasks) != fmt.Sprint(want) {
		t.Errorf("layer 0 = %v, want %v (priority asc, then id asc)", layers[0].Tasks, want)
	}
	if fmt.Sprint(layers[1].Tasks) != `[d]` {
		t.Errorf("layer 1 = %v, want [d]", layers[1].Tasks)
	}

	again, err := Layers(dag)
	if err != nil {
		t.Fatalf("Layers (second run): %v", err)
	}
	if fmt.Sprint(layers) != fmt.Sprint(again) {
		t.Error("Layers is not deterministic across repeated calls on the same DAG")
	}
}

// TestLayersCycleDetection verifies a cyclic DAG is rejected with its
// residual task set rather than hanging.
func TestLayersCycleDetection(t *testing.T) {
	dag := DAG{Tasks: []Task{
		{ID: "a", Kind: KindToolCall, DependsOn: []string{"b"}},
		{ID: "b", Kind: KindToolCall, DependsOn: []string{"a"}},
	}}
	_, err := Layers(dag)
	if err == nil {
		t.Fatal("expected a cycle-detection error, got nil")
	}
	var verr *ValidationError
	if !asValidationError(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if len(verr.ResidualTask) != 2 {
		t.Errorf("expected both tasks in residual set, got %v", verr.ResidualTask)
	}
}

func asValidationError(err error, out **ValidationError) bool {
	if v, ok := err.(*ValidationError); ok {
		*out = v
		return true
	}
	return false
}

// TestControllerExecuteChain verifies a Controller runs a dependency chain
// layer by layer to completion, with every task's result recorded.
func TestControllerExecuteChain(t *testing.T) {
	dag := chainDAG(4)
	c := NewController(DefaultControllerConfig(), &fakeExecutor{}, fakeResolver{})

	state, err := c.Execute(context.Background(), "wf-chain", dag, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("t%d", i)
		res, ok := state.Tasks[id]
		if !ok {
			t.Fatalf("missing result for %s", id)
		}
		if res.Status != StatusSuccess {
			t.Errorf("%s: status = %s, want success", id, res.Status)
		}
	}
}

// TestControllerDependencyFailureSkip verifies §7's propagation: a task
// whose dependency errored is skipped, not executed.
func TestControllerDependencyFailureSkip(t *testing.T) {
	dag := chainDAG(3)
	c := NewController(DefaultControllerConfig(), &fakeExecutor{failIDs: map[string]bool{"t0": true}}, fakeResolver{})

	state, err := c.Execute(context.Background(), "wf-skip", dag, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Tasks["t0"].Status != StatusError {
		t.Fatalf("t0 status = %s, want error", state.Tasks["t0"].Status)
	}
	if state.Tasks["t1"].Status != StatusSkipped {
		t.Errorf("t1 status = %s, want skipped", state.Tasks["t1"].Status)
	}
	if state.Tasks["t2"].Status != StatusSkipped {
		t.Errorf("t2 status = %s, want skipped", state.Tasks["t2"].Status)
	}
}

// TestControllerFanOutConcurrency verifies a single layer's tasks all run,
// regardless of fan-out width.
func TestControllerFanOutConcurrency(t *testing.T) {
	dag := fanOutDAG(10)
	c := NewController(DefaultControllerConfig(), &fakeExecutor{}, fakeResolver{})

	state, err := c.Execute(context.Background(), "wf-fanout", dag, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("leaf%d", i)
		if state.Tasks[id].Status != StatusSuccess {
			t.Errorf("%s: status = %s, want success", id, state.Tasks[id].Status)
		}
	}
}

// fakeHILGate returns a fixed Decision for every checkpoint=hil task,
// standing in for a real human approval channel (e.g. a2a.Gate).
type fakeHILGate struct {
	outcome string
	err     error
}

func (f fakeHILGate) RequestApproval(context.Context, WorkflowState, Task) (Decision, error) {
	if f.err != nil {
		return Decision{}, f.err
	}
	return Decision{Outcome: f.outcome, Reason: "fake gate"}, nil
}

// TestControllerHILCheckpointApproved verifies a checkpoint=hil task runs
// to success once the gate approves it.
func TestControllerHILCheckpointApproved(t *testing.T) {
	dag := DAG{Tasks: []Task{{ID: "t0", Kind: KindToolCall, Tool: "mock:tool", Checkpoint: CheckpointHIL}}}
	c := NewController(DefaultControllerConfig(), &fakeExecutor{}, fakeResolver{}, WithHILGate(fakeHILGate{outcome: "approve"}))

	state, err := c.Execute(context.Background(), "wf-hil-approve", dag, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Tasks["t0"].Status != StatusSuccess {
		t.Fatalf("t0 status = %s, want success", state.Tasks["t0"].Status)
	}
	if len(state.Decisions) != 1 || state.Decisions[0].Gate != "hil" || state.Decisions[0].Outcome != "approve" {
		t.Fatalf("expected one recorded hil/approve decision, got %+v", state.Decisions)
	}
}

// TestControllerHILCheckpointRejected verifies a checkpoint=hil task never
// executes when the gate rejects it, and is reported as a failed task
// rather than silently dropped.
func TestControllerHILCheckpointRejected(t *testing.T) {
	dag := DAG{Tasks: []Task{{ID: "t0", Kind: KindToolCall, Tool: "mock:tool", Checkpoint: CheckpointHIL}}}
	c := NewController(DefaultControllerConfig(), &fakeExecutor{}, fakeResolver{}, WithHILGate(fakeHILGate{outcome: "reject"}))

	state, err := c.Execute(context.Background(), "wf-hil-reject", dag, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Tasks["t0"].Status == StatusSuccess {
		t.Fatalf("t0 should not have executed after a hil rejection")
	}
	if state.Tasks["t0"].Error == nil || state.Tasks["t0"].Error.Kind != string(classify.Validation) {
		t.Fatalf("expected a validation error on rejection, got %+v", state.Tasks["t0"].Error)
	}
}

// ============================================================================
// BENCHMARKS
// ============================================================================

func BenchmarkLayers(b *testing.B) {
	sizes := []int{1, 10, 100, 1000}
	for _, n := range sizes {
		dag := chainDAG(n)
		b.Run(fmt.Sprintf("chain-%d", n), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Layers(dag); err != nil {
					b.Fatalf("Layers: %v", err)
				}
			}
		})
	}
}

func BenchmarkControllerExecute(b *testing.B) {
	sizes := []int{1, 5, 20, 50}
	for _, n := range sizes {
		dag := fanOutDAG(n)
		b.Run(fmt.Sprintf("fanout-%d", n), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				c := NewController(DefaultControllerConfig(), &fakeExecutor{}, fakeResolver{})
				if _, err := c.Execute(context.Background(), fmt.Sprintf("wf-bench-%d", i), dag, nil); err != nil {
					b.Fatalf("Execute: %v", err)
				}
			}
		})
	}
}
