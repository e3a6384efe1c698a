// Package speculate implements C11: the intra-workflow speculative
// executor. Once a layer completes, workflow.Controller fires a
// fire-and-forget TriggerLayer call for the next layer; Speculator resolves
// each of that layer's tasks' arguments against the current state, and for
// every task the safety oracle marks can_speculate, invokes it early and
// stores the result under its fingerprint so the controller's real
// execution of that layer can later hit the cache (P10).
//
// A task with side_effects=true is never passed to the executor here —
// enforced at the call site, not just by the safety oracle — satisfying
// P6 by construction rather than by trusting a single check.
package speculate

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/hector-pml/workflow"
)

// SafetyOracle is the subset of safety.Oracle's surface Speculator needs.
type SafetyOracle interface {
	CanSpeculate(task workflow.Task) bool
}

// Speculator implements workflow.Speculator.
type Speculator struct {
	executor workflow.TaskExecutor
	resolver workflow.ArgResolver
	cache    workflow.SpeculationCacheBackend
	oracle   SafetyOracle
	ttl      time.Duration
	sem      *semaphore.Weighted
}

// Config tunes Speculator's concurrency and cache TTL.
type Config struct {
	MaxConcurrency int64
	TTL            time.Duration
}

// New returns a Speculator. A nil oracle makes CanSpeculate always false,
// i.e. speculation is disabled entirely — the conservative default.
func New(executor workflow.TaskExecutor, resolver workflow.ArgResolver, cache workflow.SpeculationCacheBackend, oracle SafetyOracle, cfg Config) *Speculator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Speculator{
		executor: executor,
		resolver: resolver,
		cache:    cache,
		oracle:   oracle,
		ttl:      cfg.TTL,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrency),
	}
}

// TriggerLayer implements workflow.Speculator. It never blocks the
// caller: each task's speculative execution runs in its own goroutine,
// bounded by Config.MaxConcurrency via the shared semaphore.
func (s *Speculator) TriggerLayer(ctx context.Context, state workflow.WorkflowState, next []workflow.Task) {
	for _, task := range next {
		task := task
		go s.SpeculateTask(ctx, state, task)
	}
}

// SpeculateTask resolves task's arguments against state and, if the
// safety oracle permits, executes it early and stores the result in the
// cache under its fingerprint. This is the operation the controller (or a
// thin DAG-aware wrapper around Speculator) actually calls per task.
func (s *Speculator) SpeculateTask(ctx context.Context, state workflow.WorkflowState, task workflow.Task) {
	if task.SideEffects {
		return // P6
	}
	if s.oracle == nil || !s.oracle.CanSpeculate(task) {
		return
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	args, err := s.resolver.Resolve(state, task)
	if err != nil {
		return
	}

	fp, err := workflow.Fingerprint(task.CapabilityID(), args)
	if err != nil {
		return
	}
	if _, hit, _ := s.cache.Get(ctx, fp); hit {
		return
	}

	result, err := s.executor.Execute(ctx, task, args, nil)
	if err != nil {
		return
	}
	result.Mocked = false
	_ = s.cache.Put(ctx, fp, result, s.ttl)
}
