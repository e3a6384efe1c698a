// Package feedback implements C14, the feedback publisher: on
// workflow_complete it builds a workflow-level trace and hands it to an
// external learning store. Publication is fire-and-forget and swallows its
// own errors (logged, not returned) so a learning-store outage never fails
// the workflow that produced the trace.
//
// Grounded on workflow/executor.go's CombineResults/CombineErrors idiom for
// summarizing a batch of results into the trace's success/error fields.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/kadirpekel/hector-pml/workflow"
)

// WorkflowTrace is the workflow-level record emitted once per completed
// workflow, matching §3's Trace model.
type WorkflowTrace struct {
	WorkflowID              string                          `json:"workflow_id"`
	IntentText              string                          `json:"intent_text,omitempty"`
	DAG                     workflow.DAG                     `json:"dag"`
	TaskResults             map[string]workflow.TaskResult  `json:"task_results"`
	TotalDurationMS         int64                            `json:"total_duration_ms"`
	Success                 bool                             `json:"success"`
	InitialContextSanitized map[string]any                   `json:"initial_context_sanitized"`
	Exploratory             bool                             `json:"exploratory"`
	MockRatio               float64                          `json:"mock_ratio"`
}

// Store persists a WorkflowTrace. Implementations must not block the
// publishing goroutine for long; Publisher already runs them off the
// workflow's own goroutine, but a Store that itself blocks indefinitely
// will accumulate goroutines under sustained load.
type Store interface {
	RecordWorkflow(ctx context.Context, tr WorkflowTrace) error
}

// Publisher builds and publishes WorkflowTraces.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// New returns a Publisher. A nil logger defaults to slog.Default().
func New(store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Publish builds a WorkflowTrace from the final state and DAG and hands it
// to the store on its own goroutine. It returns immediately; the caller's
// workflow_complete event is never delayed by trace publication.
func (p *Publisher) Publish(ctx context.Context, state workflow.WorkflowState, dag workflow.DAG, intentText string, totalDuration time.Duration, exploratory bool) {
	if p.store == nil {
		return
	}
	tr := buildTrace(state, dag, intentText, totalDuration, exploratory)
	go func() {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := p.store.RecordWorkflow(publishCtx, tr); err != nil {
			p.logger.Warn("feedback publish failed", "workflow_id", state.WorkflowID, "error", err)
		}
	}()
}

func buildTrace(state workflow.WorkflowState, dag workflow.DAG, intentText string, totalDuration time.Duration, exploratory bool) WorkflowTrace {
	success := true
	mocked := 0
	for _, res := range state.Tasks {
		if res.Status == workflow.StatusError {
			success = false
		}
		if res.Mocked {
			mocked++
		}
	}
	mockRatio := 0.0
	if len(state.Tasks) > 0 {
		mockRatio = float64(mocked) / float64(len(state.Tasks))
	}
	return WorkflowTrace{
		WorkflowID:              state.WorkflowID,
		IntentText:              intentText,
		DAG:                     dag,
		TaskResults:             state.Tasks,
		TotalDurationMS:         totalDuration.Milliseconds(),
		Success:                 success,
		InitialContextSanitized: state.InitialContext,
		Exploratory:             exploratory,
		MockRatio:               mockRatio,
	}
}
