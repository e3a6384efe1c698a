package workflow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/hector-pml/classify"
)

// ============================================================================
// CONTROLLER CONFIGURATION
// ============================================================================

// AILMode controls when the agent-in-the-loop gate fires.
type AILMode string

const (
	AILPerLayer AILMode = "per_layer"
	AILOnError  AILMode = "on_error"
)

// HILMode names a human-in-the-loop gate policy. It is carried in
// ControllerConfig, but runLayer does not consult it: the HIL gate fires
// only for tasks whose Checkpoint is CheckpointHIL, whatever the mode.
type HILMode string

const (
	HILAlways       HILMode = "always"
	HILCriticalOnly HILMode = "critical_only"
)

// ControllerConfig holds the knobs governing C13's layer loop.
type ControllerConfig struct {
	AILMode        AILMode
	AILTimeout     time.Duration // default-continue on expiry
	HILMode        HILMode
	HILTimeout     time.Duration // default-abort on expiry
	MaxReplans     int           // S5: replan_count cannot exceed this
	MaxConcurrency int           // 0 = unbounded (errgroup default)
}

// DefaultControllerConfig returns conservative defaults: AIL fires only on
// error, HIL only for checkpoint=hil tasks, and a replan budget of 3 per S5.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		AILMode:    AILOnError,
		AILTimeout: 5 * time.Second,
		HILMode:    HILCriticalOnly,
		HILTimeout: 5 * time.Minute,
		MaxReplans: 3,
	}
}

// ============================================================================
// COLLABORATOR CONTRACTS
// ============================================================================

// TaskExecutor runs a single task with its already-resolved arguments and
// returns its result. Implementations live in invoker (tool_call) and
// sandbox (code_exec); Controller dispatches to whichever the task's Kind
// demands via a TaskExecutor that switches internally, kept that way so
// Controller itself stays transport-agnostic.
type TaskExecutor interface {
	Execute(ctx context.Context, task Task, args map[string]any, deps map[string]TaskResult) (TaskResult, error)
}

// ArgResolver resolves a task's ArgSpec map against the current state,
// implemented by package resolver (C8).
type ArgResolver interface {
	Resolve(state WorkflowState, task Task) (map[string]any, error)
}

// AILGate decides whether to continue, abort, or request replanning after
// a layer completes. A nil AILGate means "always continue" (no-op gate).
type AILGate interface {
	Decide(ctx context.Context, state WorkflowState, layer Layer) (Decision, error)
}

// HILGate requests human approval before a checkpoint=hil task runs. A nil
// HILGate means "always approve" (used only in tests).
type HILGate interface {
	RequestApproval(ctx context.Context, state WorkflowState, task Task) (Decision, error)
}

// Speculator is notified, fire-and-forget, of the next layer's tasks once
// the current layer completes, per §4.13's intra-workflow speculation
// trigger. Implemented by package speculate (C11); Controller never waits
// on it.
type Speculator interface {
	TriggerLayer(ctx context.Context, state WorkflowState, next []Task)
}

// FeedbackPublisher fans a completed workflow's final state to an external
// learning store (C14), per §2's "on completion [C13] fans state to C14"
// data flow. Implemented by package feedback; Controller never waits on
// it, mirroring Speculator's fire-and-forget contract.
type FeedbackPublisher interface {
	Publish(ctx context.Context, state WorkflowState, dag DAG, intentText string, totalDuration time.Duration, exploratory bool)
}

// ============================================================================
// CONTROLLER
// ============================================================================

// Controller is the controlled executor (C13): the only component that
// drives a workflow from its DAG to completion. It owns the single
// authoritative WorkflowState for the run and serializes every mutation
// through Reduce.
//
// Grounded on workflow/executors.go's DAGExecutor/BaseExecutor shape
// (capabilities held on the struct, Execute as the single entry point) and
// pkg/runner/runner.go's dependency-injected-collaborators convention
// (CheckpointManager, ArtifactService as interfaces taken by constructor,
// not concrete types) — replacing the teacher's sequential
// loop-over-request.Workflow.Agents body with the full layer loop below.
type Controller struct {
	cfg ControllerConfig

	executor TaskExecutor
	resolver ArgResolver
	cache    SpeculationCacheBackend
	oracle   CapabilityOracle

	checkpoints CheckpointStore
	traces      TraceStore

	events   *EventBus
	commands *CommandQueue

	ail      AILGate
	hil      HILGate
	spec     Speculator
	feedback FeedbackPublisher
}

// NewController wires a Controller from its collaborators. Any
// collaborator may be nil except executor and resolver: a nil cache
// disables speculation short-circuiting, a nil checkpoints store disables
// persistence (resume becomes unavailable), a nil ail/hil gate defaults to
// always-continue/always-approve.
func NewController(cfg ControllerConfig, executor TaskExecutor, resolver ArgResolver, opts ...ControllerOption) *Controller {
	c := &Controller{
		cfg:      cfg,
		executor: executor,
		resolver: resolver,
		events:   NewEventBus(),
		commands: NewCommandQueue(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ControllerOption sets an optional collaborator on a Controller.
type ControllerOption func(*Controller)

func WithCache(cache SpeculationCacheBackend) ControllerOption {
	return func(c *Controller) { c.cache = cache }
}
func WithCheckpoints(store CheckpointStore) ControllerOption {
	return func(c *Controller) { c.checkpoints = store }
}
func WithOracle(oracle CapabilityOracle) ControllerOption {
	return func(c *Controller) { c.oracle = oracle }
}
func WithTraces(traces TraceStore) ControllerOption {
	return func(c *Controller) { c.traces = traces }
}
func WithAILGate(gate AILGate) ControllerOption {
	return func(c *Controller) { c.ail = gate }
}
func WithHILGate(gate HILGate) ControllerOption {
	return func(c *Controller) { c.hil = gate }
}
func WithSpeculator(spec Speculator) ControllerOption {
	return func(c *Controller) { c.spec = spec }
}
func WithCommandQueue(q *CommandQueue) ControllerOption {
	return func(c *Controller) { c.commands = q }
}
func WithFeedback(pub FeedbackPublisher) ControllerOption {
	return func(c *Controller) { c.feedback = pub }
}

// Events returns the controller's event bus so callers can Subscribe
// before calling Execute or Resume.
func (c *Controller) Events() *EventBus { return c.events }

// Commands returns the controller's command queue so callers can Enqueue
// continue/abort/approval_response/replan_dag commands from outside the
// goroutine running Execute/Resume.
func (c *Controller) Commands() *CommandQueue { return c.commands }

// abortError signals a clean, requested abort (not a failure).
type abortError struct{ reason string }

func (e *abortError) Error() string { return fmt.Sprintf("workflow aborted: %s", e.reason) }

// Execute runs dag to completion (or fatal error) from an empty state,
// emitting events on c.Events() as it goes. It implements §6's primary
// exposed operation.
func (c *Controller) Execute(ctx context.Context, workflowID string, dag DAG, initialContext map[string]any) (WorkflowState, error) {
	state := NewWorkflowState(workflowID)
	for k, v := range initialContext {
		state = Reduce(state, StateUpdate{Kind: UpdateInitialContext, ContextKey: k, ContextVal: v})
	}
	return c.run(ctx, dag, state, 0)
}

// Resume continues a previously checkpointed workflow: it recomputes
// layers from dag, replays every already-completed task's result without
// re-executing it, and continues from checkpoint.layer+1, satisfying P5.
// checkpointID selects a specific checkpoint via CheckpointStore.LoadByID
// per §4.5; when empty, Resume falls back to the latest checkpoint saved
// for workflowID.
func (c *Controller) Resume(ctx context.Context, workflowID string, dag DAG, checkpointID string) (WorkflowState, error) {
	if c.checkpoints == nil {
		return WorkflowState{}, fmt.Errorf("[workflow:Resume] no checkpoint store configured")
	}

	var rec CheckpointRecord
	var ok bool
	var err error
	if checkpointID != "" {
		rec, ok, err = c.checkpoints.LoadByID(ctx, checkpointID)
	} else {
		rec, ok, err = c.checkpoints.Load(ctx, workflowID)
	}
	if err != nil {
		return WorkflowState{}, fmt.Errorf("[workflow:Resume] loading checkpoint: %w", err)
	}
	if !ok {
		return WorkflowState{}, fmt.Errorf("[workflow:Resume] no checkpoint found for workflow %q", workflowID)
	}
	if rec.WorkflowID != workflowID {
		return WorkflowState{}, fmt.Errorf("[workflow:Resume] checkpoint %q belongs to workflow %q, not %q", checkpointID, rec.WorkflowID, workflowID)
	}
	return c.run(ctx, dag, rec.State, rec.Layer+1)
}

// run is the shared layer loop used by both Execute and Resume.
func (c *Controller) run(ctx context.Context, dag DAG, state WorkflowState, startLayer int) (WorkflowState, error) {
	start := time.Now()
	layers, err := Layers(dag)
	if err != nil {
		c.publish(state.WorkflowID, -1, "", EventWorkflowError, err.Error())
		return state, err
	}

	if startLayer == 0 {
		c.publish(state.WorkflowID, -1, "", EventWorkflowStart, nil)
	}

	for i := startLayer; i < len(layers); i++ {
		layer := layers[i]
		state = Reduce(state, StateUpdate{Kind: UpdateLayer, Layer: layer.Index})
		c.publish(state.WorkflowID, layer.Index, "", EventLayerStart, layer)

		newState, cmd, halt := c.applyQueuedCommands(ctx, state)
		state = newState
		if halt {
			if cmd != nil {
				return state, &abortError{reason: cmd.Reason}
			}
		}

		byID := dag.ByID()
		newState, fatal, err := c.runLayer(ctx, byID, layer, state)
		state = newState
		if err != nil {
			c.publish(state.WorkflowID, layer.Index, "", EventWorkflowError, err.Error())
			return state, err
		}
		c.publish(state.WorkflowID, layer.Index, "", EventStateUpdated, nil)

		c.saveCheckpoint(ctx, state, layer.Index)

		if fatal {
			return state, fmt.Errorf("[workflow:run] layer %d had a fatal task failure", layer.Index)
		}

		outcome, err := c.runAILGate(ctx, state, layer)
		if err != nil {
			return state, err
		}
		if outcome == "abort" {
			return state, &abortError{reason: "ail gate"}
		}

		if i+1 < len(layers) && c.spec != nil {
			nextTasks := make([]Task, 0, len(layers[i+1].Tasks))
			for _, id := range layers[i+1].Tasks {
				nextTasks = append(nextTasks, byID[id])
			}
			go c.spec.TriggerLayer(context.WithoutCancel(ctx), state, nextTasks)
		}
	}

	if c.feedback != nil {
		intentText, _ := state.InitialContext["intent"].(string)
		c.feedback.Publish(ctx, state, dag, intentText, time.Since(start), false)
	}
	c.publish(state.WorkflowID, -1, "", EventWorkflowDone, nil)
	return state, nil
}

// runLayer executes every task in layer concurrently (bounded by
// cfg.MaxConcurrency when set), applying cache short-circuiting, the
// dependency-skip policy of §7, and the retry policy of §7. It returns the
// updated state and whether a side_effects=true task failed (fatal).
func (c *Controller) runLayer(ctx context.Context, byID map[string]Task, layer Layer, state WorkflowState) (WorkflowState, bool, error) {
	results := make([]TaskResult, len(layer.Tasks))
	skip := make([]bool, len(layer.Tasks))
	decisions := make([]*Decision, len(layer.Tasks))

	for idx, taskID := range layer.Tasks {
		task := byID[taskID]
		if dep, skipped := c.shouldSkip(task, state); skipped {
			results[idx] = TaskResult{TaskID: task.ID, Status: StatusSkipped, Error: &TaskError{Kind: string(classify.Runtime), Message: fmt.Sprintf("dependency %q failed", dep)}}
			skip[idx] = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.MaxConcurrency > 0 {
		g.SetLimit(c.cfg.MaxConcurrency)
	}

	for idx, taskID := range layer.Tasks {
		idx, taskID := idx, taskID
		if skip[idx] {
			continue
		}
		task := byID[taskID]
		g.Go(func() error {
			c.publish(state.WorkflowID, layer.Index, task.ID, EventTaskStart, task)

			if task.Checkpoint == CheckpointHIL {
				decision, err := c.runHILGate(gctx, state, task)
				if err != nil {
					return err
				}
				decisions[idx] = &decision
				if decision.Outcome != "approve" {
					res := TaskResult{TaskID: task.ID, Status: StatusFailedSafe,
						Error: &TaskError{Kind: string(classify.Validation), Message: "hil approval not granted: " + decision.Reason}}
					results[idx] = res
					c.publish(state.WorkflowID, layer.Index, task.ID, EventTaskResult, res)
					return nil
				}
			}

			res := c.executeOne(gctx, state, task)
			results[idx] = res
			c.publish(state.WorkflowID, layer.Index, task.ID, EventTaskResult, res)
			c.recordTrace(gctx, state.WorkflowID, task, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state, false, err
	}

	fatal := false
	for idx, res := range results {
		if d := decisions[idx]; d != nil {
			state = Reduce(state, StateUpdate{Kind: UpdateDecision, Decision: *d})
		}
		state = Reduce(state, StateUpdate{Kind: UpdateTaskResult, TaskResult: res})
		task := byID[layer.Tasks[idx]]
		if res.Status == StatusError && task.SideEffects {
			fatal = true
		}
	}

	return state, fatal, nil
}

// shouldSkip implements §7's dependency-failure propagation: a task whose
// dependency status is "error" is skipped; a task whose dependency status
// is "failed_safe" still runs (the sandbox/tool sees deps[dep].status).
func (c *Controller) shouldSkip(task Task, state WorkflowState) (string, bool) {
	for _, dep := range task.DependsOn {
		if r, ok := state.Tasks[dep]; ok && r.Status == StatusError {
			return dep, true
		}
	}
	return "", false
}

// executeOne resolves task's arguments, checks the speculation cache, and
// otherwise dispatches to c.executor, applying the retry policy of §7.
func (c *Controller) executeOne(ctx context.Context, state WorkflowState, task Task) TaskResult {
	args, err := c.resolver.Resolve(state, task)
	if err != nil {
		return TaskResult{TaskID: task.ID, Status: StatusError, Error: &TaskError{Kind: string(classify.Validation), Message: err.Error()}}
	}

	if c.cache != nil {
		if fp, ferr := Fingerprint(task.CapabilityID(), args); ferr == nil {
			if cached, hit, _ := c.cache.Get(ctx, fp); hit {
				cached.FromCache = true
				return cached
			}
		}
	}

	deps := make(map[string]TaskResult, len(task.DependsOn))
	for _, dep := range task.DependsOn {
		deps[dep] = state.Tasks[dep]
	}

	return c.executeWithRetry(ctx, task, args, deps)
}

// executeWithRetry implements §7's retry policy: network/timeout on a
// read-only tool_call and runtime on a side_effects=false code_exec are
// each retried up to 3 attempts, waiting 100ms and then 200ms between
// them; everything else propagates on the first failure.
func (c *Controller) executeWithRetry(ctx context.Context, task Task, args map[string]any, deps map[string]TaskResult) TaskResult {
	const maxAttempts = 3
	delays := [maxAttempts - 1]time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

	start := time.Now()
	var last TaskResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := c.executor.Execute(ctx, task, args, deps)
		res.TaskID = task.ID
		res.DurationMS = time.Since(start).Milliseconds()
		if err == nil && res.Status != StatusError {
			return res
		}

		kind := classify.Classify(err)
		if res.Error != nil {
			kind = classify.Kind(res.Error.Kind)
		}
		last = res
		if last.Error == nil {
			last.Error = &TaskError{Kind: string(kind), Message: fmt.Sprintf("%v", err)}
		}
		last.Status = StatusError

		if !c.retryEligible(task, kind) || attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(delays[attempt]):
		}
	}

	if task.Kind == KindCodeExec && !task.SideEffects {
		last.Status = StatusFailedSafe
	}
	return last
}

func (c *Controller) retryEligible(task Task, kind classify.Kind) bool {
	switch {
	case task.Kind == KindToolCall && !task.SideEffects && (kind == classify.Network || kind == classify.Timeout):
		return true
	case task.Kind == KindCodeExec && !task.SideEffects && kind == classify.Runtime:
		return true
	default:
		return false
	}
}

// runAILGate applies the per_layer/on_error AIL policy, defaulting to
// continue on gate timeout per §4.13.
func (c *Controller) runAILGate(ctx context.Context, state WorkflowState, layer Layer) (string, error) {
	if c.ail == nil {
		return "continue", nil
	}
	hadError := false
	for _, id := range layer.Tasks {
		if r, ok := state.Tasks[id]; ok && r.Status == StatusError {
			hadError = true
		}
	}
	if c.cfg.AILMode == AILOnError && !hadError {
		return "continue", nil
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.AILTimeout)
	defer cancel()

	decCh := make(chan Decision, 1)
	errCh := make(chan error, 1)
	go func() {
		d, err := c.ail.Decide(gctx, state, layer)
		if err != nil {
			errCh <- err
			return
		}
		decCh <- d
	}()

	select {
	case d := <-decCh:
		return d.Outcome, nil
	case err := <-errCh:
		return "", fmt.Errorf("[workflow:runAILGate] %w", err)
	case <-gctx.Done():
		return "continue", nil
	}
}

// runHILGate requests approval for a single checkpoint=hil task. A nil
// HILGate approves automatically (tests only); a gate that times out
// defaults to reject, unlike the AIL gate's default-continue, since a HIL
// checkpoint exists specifically to stop a side-effecting task absent an
// explicit human decision.
func (c *Controller) runHILGate(ctx context.Context, state WorkflowState, task Task) (Decision, error) {
	if c.hil == nil {
		return Decision{Layer: state.Layer, Gate: "hil", Outcome: "approve"}, nil
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.HILTimeout)
	defer cancel()

	decCh := make(chan Decision, 1)
	errCh := make(chan error, 1)
	go func() {
		d, err := c.hil.RequestApproval(gctx, state, task)
		if err != nil {
			errCh <- err
			return
		}
		decCh <- d
	}()

	select {
	case d := <-decCh:
		d.Layer = state.Layer
		d.Gate = "hil"
		return d, nil
	case err := <-errCh:
		return Decision{}, fmt.Errorf("[workflow:runHILGate] %w", err)
	case <-gctx.Done():
		return Decision{Layer: state.Layer, Gate: "hil", Outcome: "reject", Reason: "hil gate timed out"}, nil
	}
}

// applyQueuedCommands drains the command queue at this layer boundary
// (§4.3). An abort halts; a replan_dag only increments ReplanCount (up to
// MaxReplans) — its NewDAG is not applied and the DAG is not re-layered;
// an approval_response records a HIL decision. It returns the (possibly
// updated) state, the command that decided to halt (if any), and whether
// execution should stop.
func (c *Controller) applyQueuedCommands(ctx context.Context, state WorkflowState) (WorkflowState, *Command, bool) {
	for _, cmd := range c.commands.Drain() {
		switch cmd.Type {
		case CommandAbort:
			cp := cmd
			return state, &cp, true
		case CommandReplanDAG:
			if state.ReplanCount >= c.cfg.MaxReplans {
				continue
			}
			state = Reduce(state, StateUpdate{Kind: UpdateReplanCount, ReplanCount: state.ReplanCount + 1})
		case CommandApprovalResponse:
			state = Reduce(state, StateUpdate{Kind: UpdateDecision, Decision: Decision{
				Layer: state.Layer, Gate: "hil", Outcome: approvalOutcome(cmd.Approved), Reason: cmd.Reason,
			}})
		}
	}
	return state, nil, false
}

func approvalOutcome(approved bool) string {
	if approved {
		return "approve"
	}
	return "reject"
}

func (c *Controller) saveCheckpoint(ctx context.Context, state WorkflowState, layer int) {
	if c.checkpoints == nil {
		return
	}
	hash, err := canonicalHash(state)
	if err != nil {
		c.publish(state.WorkflowID, layer, "", EventCheckpoint, fmt.Sprintf("failed-L%d", layer))
		return
	}
	rec := CheckpointRecord{ID: NewID(), WorkflowID: state.WorkflowID, Layer: layer, State: state, Hash: hash, SavedAt: time.Now().UnixMilli()}
	if err := c.checkpoints.Save(ctx, rec); err != nil {
		// Non-fatal per §7: emit a failed-L{layer} marker and continue.
		c.publish(state.WorkflowID, layer, "", EventCheckpoint, fmt.Sprintf("failed-L%d", layer))
		return
	}
	c.publish(state.WorkflowID, layer, "", EventCheckpoint, rec)
}

func (c *Controller) recordTrace(ctx context.Context, workflowID string, task Task, res TaskResult) {
	if c.traces == nil {
		return
	}
	kind := ""
	if res.Error != nil {
		kind = res.Error.Kind
	}
	_ = c.traces.Record(ctx, Trace{
		WorkflowID: workflowID, TaskID: task.ID, Tool: task.Tool, Status: res.Status,
		Kind: kind, DurationMS: res.DurationMS, Mocked: res.Mocked, FromCache: res.FromCache,
	})
}

func (c *Controller) publish(workflowID string, layer int, taskID string, typ EventType, payload any) {
	if c.events == nil {
		return
	}
	c.events.Publish(Event{Type: typ, WorkflowID: workflowID, Layer: layer, TaskID: taskID, Payload: payload})
}
