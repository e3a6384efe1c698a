package workflow

import (
	"reflect"

	"github.com/kadirpekel/hector-pml/sanitize"
)

// WorkflowState is the accumulated, append-only view of a workflow's
// execution: every task's latest result, every decision recorded at a
// checkpoint gate, and two distinct maps resolver draws arguments from —
// Context (task outputs, keyed by task id, for Reference arguments) and
// InitialContext (the caller-supplied parameters passed to Execute, for
// Parameter arguments). Keeping them separate means a parameter and a task
// sharing a name can never resolve to each other's value.
//
// Unlike the teacher's ExecutionContext (a mutex-guarded struct mutated in
// place by the executor), WorkflowState is an immutable value: every
// transition goes through Reduce, which returns a new value and never
// modifies its receiver. The controller owns synchronization of the single
// authoritative copy; everything downstream (reducers, resolver, sanitize)
// operates on plain values.
type WorkflowState struct {
	WorkflowID     string                `json:"workflow_id"`
	Layer          int                   `json:"layer"`
	Tasks          map[string]TaskResult `json:"tasks"`
	Decisions      []Decision            `json:"decisions"`
	Context        map[string]any        `json:"context"`
	InitialContext map[string]any        `json:"initial_context"`
	ReplanCount    int                   `json:"replan_count"`
}

// Decision records one AIL/HIL gate outcome.
type Decision struct {
	Layer     int    `json:"layer"`
	Gate      string `json:"gate"` // "ail" or "hil"
	Outcome   string `json:"outcome"` // "continue", "abort", "approve", "reject"
	Reason    string `json:"reason,omitempty"`
}

// NewWorkflowState returns the zero-value state for a fresh workflow run.
func NewWorkflowState(workflowID string) WorkflowState {
	return WorkflowState{
		WorkflowID:     workflowID,
		Layer:          -1,
		Tasks:          map[string]TaskResult{},
		Context:        map[string]any{},
		InitialContext: map[string]any{},
	}
}

// UpdateKind distinguishes the StateUpdate variants a reducer can apply.
type UpdateKind string

const (
	UpdateTaskResult     UpdateKind = "task_result"
	UpdateDecision       UpdateKind = "decision"
	UpdateLayer          UpdateKind = "layer"
	UpdateContext        UpdateKind = "context"
	UpdateInitialContext UpdateKind = "initial_context"
	UpdateReplanCount    UpdateKind = "replan_count"
)

// StateUpdate is the input to Reduce: a single, self-contained change.
// Task-result, context, initial-context, layer and replan-count updates
// are idempotent (re-applying an identical one is a no-op past the first
// application); a decision update appends, so re-applying it records the
// decision again. Updates are associative (the same set applied in any
// order that respects layer progression yields the same state) — P3.
type StateUpdate struct {
	Kind        UpdateKind
	TaskResult  TaskResult
	Decision    Decision
	Layer       int
	ContextKey  string
	ContextVal  any
	ReplanCount int
}

// Reduce applies update to state and returns the resulting state. It never
// mutates state's maps/slices in place; it always returns fresh ones, so
// the caller's prior reference remains a valid snapshot (needed for
// checkpoint content-hashing and for event payloads taken mid-transition).
func Reduce(state WorkflowState, update StateUpdate) WorkflowState {
	next := WorkflowState{
		WorkflowID:     state.WorkflowID,
		Layer:          state.Layer,
		Tasks:          cloneTasks(state.Tasks),
		Decisions:      append([]Decision{}, state.Decisions...),
		Context:        cloneContext(state.Context),
		InitialContext: cloneContext(state.InitialContext),
		ReplanCount:    state.ReplanCount,
	}

	switch update.Kind {
	case UpdateTaskResult:
		if existing, ok := next.Tasks[update.TaskResult.TaskID]; ok && reflect.DeepEqual(existing, update.TaskResult) {
			return next // idempotent: identical result already recorded
		}
		next.Tasks[update.TaskResult.TaskID] = update.TaskResult
		if update.TaskResult.Status == StatusSuccess {
			next.Context[update.TaskResult.TaskID] = sanitize.Sanitize(update.TaskResult.Output, sanitize.DefaultOptions())
		}
	case UpdateDecision:
		next.Decisions = append(next.Decisions, update.Decision)
	case UpdateLayer:
		if update.Layer > next.Layer {
			next.Layer = update.Layer
		}
	case UpdateContext:
		next.Context[update.ContextKey] = sanitize.Sanitize(update.ContextVal, sanitize.DefaultOptions())
	case UpdateInitialContext:
		next.InitialContext[update.ContextKey] = sanitize.Sanitize(update.ContextVal, sanitize.DefaultOptions())
	case UpdateReplanCount:
		if update.ReplanCount > next.ReplanCount {
			next.ReplanCount = update.ReplanCount
		}
	}

	return next
}

// ReduceAll folds a sequence of updates over state in order, used when
// replaying a checkpoint's recorded history during resume (P5).
func ReduceAll(state WorkflowState, updates []StateUpdate) WorkflowState {
	for _, u := range updates {
		state = Reduce(state, u)
	}
	return state
}

func cloneTasks(in map[string]TaskResult) map[string]TaskResult {
	out := make(map[string]TaskResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneContext(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
