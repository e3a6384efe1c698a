// Package explore implements C12, the exploratory hybrid executor: given
// an intent with no matching capability, it asks a workflow.CapabilityOracle
// for up to K candidate paths and walks each one step by step, executing
// through C6 wherever the safety oracle allows it and falling back to a
// deterministic mock otherwise.
//
// Grounded on pkg/tool/tool.go's Result shape for the per-step outcome and
// on pkg/tool/functiontool/schema.go's schema-as-map shape: instead of
// turning a Go result type into a JSON Schema, defaultFromSchema walks a
// declared schema map by hand to produce a zero-value-consistent mock
// rather than a prompt description. No JSON Schema library is used.
package explore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/hector-pml/workflow"
)

// SafetyOracle is the subset of safety.Oracle's surface Explorer needs.
type SafetyOracle interface {
	CanSpeculate(task workflow.Task) bool
}

// SchemaSource supplies a tool's declared JSON output schema, in the same
// map[string]any shape pkg/tool/functiontool/schema.go produces. ok=false
// means the tool declares no schema.
type SchemaSource interface {
	OutputSchema(ctx context.Context, tool string) (schema map[string]any, ok bool, err error)
}

// Config tunes Explorer's throttling, grounded on §4.12's stated defaults.
type Config struct {
	MaxPaths       int
	MaxDepth       int
	MaxConcurrency int64
	PerPathTimeout time.Duration
}

// DefaultConfig returns §4.12's documented defaults: throttle 2 concurrent
// explorations, depth 5, 30s per path.
func DefaultConfig() Config {
	return Config{MaxPaths: 2, MaxDepth: 5, MaxConcurrency: 2, PerPathTimeout: 30 * time.Second}
}

// Request is one exploration of an intent that has no matching capability.
type Request struct {
	WorkflowID      string
	Intent          string
	WorkflowContext map[string]any
	// ExplicitMocks maps tool name to the caller-supplied mock output to use
	// in place of a schema-based default, per §4.12(a)'s precedence.
	ExplicitMocks map[string]any
}

// StepResult is one step of a walked path.
type StepResult struct {
	Tool   string `json:"tool"`
	Mocked bool   `json:"mocked"`
	Output any    `json:"output,omitempty"`
	Err    string `json:"error,omitempty"`
}

// PathResult is the outcome of walking one candidate path to completion or
// to the real-step failure that ended it.
type PathResult struct {
	ID         string       `json:"id"`
	Steps      []StepResult `json:"steps"`
	Viable     bool         `json:"viable"`
	FailedAt   string       `json:"failed_at,omitempty"`
	Confidence float64      `json:"confidence"`
	MockRatio  float64      `json:"mock_ratio"`
}

// Explorer walks hypothetical paths with hybrid real/mock execution.
type Explorer struct {
	executor workflow.TaskExecutor
	oracle   workflow.CapabilityOracle
	safety   SafetyOracle
	schemas  SchemaSource
	traces   workflow.TraceStore
	cfg      Config
	sem      *semaphore.Weighted
}

// New returns an Explorer. schemas and traces may be nil: a nil schemas
// source falls straight to the minimal-stub mock (§4.12(c)); a nil traces
// store simply skips trace emission.
func New(executor workflow.TaskExecutor, oracle workflow.CapabilityOracle, safety SafetyOracle, schemas SchemaSource, traces workflow.TraceStore, cfg Config) *Explorer {
	if cfg.MaxPaths <= 0 {
		cfg.MaxPaths = DefaultConfig().MaxPaths
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.PerPathTimeout <= 0 {
		cfg.PerPathTimeout = DefaultConfig().PerPathTimeout
	}
	return &Explorer{
		executor: executor, oracle: oracle, safety: safety, schemas: schemas, traces: traces,
		cfg: cfg, sem: semaphore.NewWeighted(cfg.MaxConcurrency),
	}
}

// Explore asks the oracle for up to Config.MaxPaths candidate starting
// capabilities and walks each one concurrently (bounded by
// Config.MaxConcurrency), returning one PathResult per candidate.
func (e *Explorer) Explore(ctx context.Context, req Request) ([]PathResult, error) {
	candidates, err := e.oracle.FindCandidates(ctx, req.Intent, req.WorkflowContext)
	if err != nil {
		return nil, fmt.Errorf("[explore:Explore] finding candidates: %w", err)
	}
	if len(candidates) > e.cfg.MaxPaths {
		candidates = candidates[:e.cfg.MaxPaths]
	}

	results := make([]PathResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, start := range candidates {
		i, start := i, start
		g.Go(func() error {
			if err := e.sem.Acquire(gctx, 1); err != nil {
				return nil // context canceled; leave results[i] zero-valued
			}
			defer e.sem.Release(1)
			results[i] = e.walkPath(gctx, req, fmt.Sprintf("%s-path-%d", req.WorkflowID, i), start)
			return nil
		})
	}
	_ = g.Wait() // per-path errors live in PathResult, not propagated here
	return results, nil
}

// walkPath traverses one candidate path up to Config.MaxDepth, executing
// each step for real when the safety oracle permits it and mocking it
// otherwise. A real-step failure ends the path immediately with
// viable=false.
func (e *Explorer) walkPath(ctx context.Context, req Request, pathID, start string) PathResult {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PerPathTimeout)
	defer cancel()

	result := PathResult{ID: pathID, Viable: true}
	tool := start
	mockCount := 0

	for depth := 0; depth < e.cfg.MaxDepth && tool != ""; depth++ {
		task := workflow.Task{ID: fmt.Sprintf("%s-step-%d", pathID, depth), Kind: workflow.KindToolCall, Tool: tool}

		var step StepResult
		if e.safety != nil && e.safety.CanSpeculate(task) {
			res, err := e.executor.Execute(ctx, task, nil, nil)
			if err != nil {
				step = StepResult{Tool: tool, Mocked: false, Err: err.Error()}
				result.Steps = append(result.Steps, step)
				result.Viable = false
				result.FailedAt = tool
				e.recordTrace(ctx, req.WorkflowID, pathID, task, step)
				break
			}
			step = StepResult{Tool: tool, Mocked: false, Output: res.Output}
		} else {
			step = StepResult{Tool: tool, Mocked: true, Output: e.mockFor(ctx, tool, req)}
			mockCount++
		}
		result.Steps = append(result.Steps, step)
		e.recordTrace(ctx, req.WorkflowID, pathID, task, step)

		next, err := e.oracle.NextCapabilities(ctx, summarize(result))
		if err != nil || len(next) == 0 {
			break
		}
		tool = next[0]
	}

	if len(result.Steps) > 0 {
		result.MockRatio = float64(mockCount) / float64(len(result.Steps))
	}
	result.Confidence = confidence(result, mockCount, e.cfg.MaxDepth)
	return result
}

// mockFor produces a deterministic mock output for tool, per §4.12(a-c)'s
// precedence: an explicit mock from the request, else a schema-based
// default, else the minimal stub.
func (e *Explorer) mockFor(ctx context.Context, tool string, req Request) any {
	if v, ok := req.ExplicitMocks[tool]; ok {
		return v
	}
	if e.schemas != nil {
		if schema, ok, err := e.schemas.OutputSchema(ctx, tool); err == nil && ok {
			return defaultFromSchema(schema)
		}
	}
	return map[string]any{"_mocked": true, "tool": tool, "reason": "unsafe"}
}

// defaultFromSchema walks a JSON Schema (as produced by
// pkg/tool/functiontool/schema.go's reflector) and returns a
// zero-value-consistent default: "" for string, 0 for number/integer,
// false for boolean, an empty slice for array, and a recursively defaulted
// object for object schemas.
func defaultFromSchema(schema map[string]any) any {
	typ, _ := schema["type"].(string)
	switch typ {
	case "string":
		return ""
	case "integer", "number":
		return 0
	case "boolean":
		return false
	case "array":
		return []any{}
	case "object":
		props, _ := schema["properties"].(map[string]any)
		out := make(map[string]any, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out[name] = defaultFromSchema(sub)
			} else {
				out[name] = nil
			}
		}
		return out
	default:
		return nil
	}
}

// confidence computes §4.12's monotone function of real-step ratio and
// dependency coherence. Historical success is not available to Explorer
// (that signal lives in the external capability oracle, consulted via
// NextCapabilities), so this implementation weights real-step ratio and
// path completeness (steps walked against the configured max depth) only.
func confidence(result PathResult, mockCount, maxDepth int) float64 {
	if !result.Viable || len(result.Steps) == 0 {
		return 0
	}
	realRatio := 1 - float64(mockCount)/float64(len(result.Steps))
	completeness := float64(len(result.Steps)) / float64(maxDepth)
	if completeness > 1 {
		completeness = 1
	}
	return 0.7*realRatio + 0.3*completeness
}

// summarize renders the path walked so far for the oracle's
// NextCapabilities call, which takes a free-text workflow summary rather
// than a structured path.
func summarize(result PathResult) string {
	s := "path so far:"
	for _, step := range result.Steps {
		s += " " + step.Tool
	}
	return s
}

// recordTrace emits one exploratory Trace per step, swallowing publish
// failures per §7 (a feedback publish failure must never fail the path
// that produced it).
func (e *Explorer) recordTrace(ctx context.Context, workflowID, pathID string, task workflow.Task, step StepResult) {
	if e.traces == nil {
		return
	}
	status := workflow.StatusSuccess
	if step.Err != "" {
		status = workflow.StatusError
	}
	_ = e.traces.Record(ctx, workflow.Trace{
		WorkflowID: workflowID, TaskID: task.ID, Tool: task.Tool, Status: status,
		Mocked: step.Mocked, Exploratory: true, PathID: pathID,
	})
}
