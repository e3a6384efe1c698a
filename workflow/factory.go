package workflow

import (
	"fmt"
	"time"

	"github.com/kadirpekel/hector-pml/config"
)

// ============================================================================
// CONTROLLER FACTORY
// ============================================================================

// BuildController assembles a Controller from a config.PMLConfig plus the
// collaborator registries a host process has already populated. It
// replaces the teacher's DefaultWorkflowExecutorFactory.CreateExecutor
// switch (which dispatched on an executorType string to either
// NewDAGExecutor or NewAutonomousExecutor) with a single assembly
// function — the PML has exactly one controlled executor, so there is
// nothing left to switch on; what varies is its collaborator wiring, not
// its type.
func BuildController(
	cfg config.PMLConfig,
	executor TaskExecutor,
	resolver ArgResolver,
	transports *TransportRegistry,
	oracles *OracleRegistry,
	checkpoints *CheckpointRegistry,
	cache SpeculationCacheBackend,
	traces TraceStore,
	ail AILGate,
	hil HILGate,
	spec Speculator,
	feedback FeedbackPublisher,
) (*Controller, error) {
	if executor == nil {
		return nil, NewExecutionError("workflow", "BuildController", "task executor is required", nil)
	}
	if resolver == nil {
		return nil, NewExecutionError("workflow", "BuildController", "argument resolver is required", nil)
	}

	ctrlCfg := ControllerConfig{
		AILMode:        AILMode(cfg.Controller.AILMode),
		AILTimeout:     time.Duration(cfg.Controller.AILTimeoutSeconds) * time.Second,
		HILMode:        HILMode(cfg.Controller.HILMode),
		HILTimeout:     time.Duration(cfg.Controller.HILTimeoutSeconds) * time.Second,
		MaxReplans:     cfg.Controller.MaxReplans,
		MaxConcurrency: cfg.Controller.MaxConcurrency,
	}
	if ctrlCfg.AILMode == "" {
		ctrlCfg.AILMode = AILOnError
	}
	if ctrlCfg.HILMode == "" {
		ctrlCfg.HILMode = HILCriticalOnly
	}
	if ctrlCfg.MaxReplans == 0 {
		ctrlCfg.MaxReplans = 3
	}

	opts := []ControllerOption{WithCache(cache), WithTraces(traces), WithAILGate(ail), WithHILGate(hil), WithSpeculator(spec)}

	if feedback != nil {
		opts = append(opts, WithFeedback(feedback))
	}

	if checkpoints != nil && cfg.Checkpoint.Backend != "" {
		store, ok := checkpoints.Get(cfg.Checkpoint.Backend)
		if !ok {
			return nil, NewExecutionError("workflow", "BuildController",
				fmt.Sprintf("no checkpoint backend registered under name %q", cfg.Checkpoint.Backend), nil)
		}
		opts = append(opts, WithCheckpoints(store))
	}

	if oracles != nil && cfg.Oracle.Backend != "" {
		oracle, ok := oracles.Get(cfg.Oracle.Backend)
		if !ok {
			return nil, NewExecutionError("workflow", "BuildController",
				fmt.Sprintf("no capability oracle registered under name %q", cfg.Oracle.Backend), nil)
		}
		opts = append(opts, WithOracle(oracle))
	}

	return NewController(ctrlCfg, executor, resolver, opts...), nil
}

// ResolveTransport returns the transport a host should hand to package
// invoker: either the explicitly named one or the registry's sole entry.
func ResolveTransport(cfg config.PMLConfig, transports *TransportRegistry) (ToolTransport, error) {
	if transports == nil {
		return nil, NewExecutionError("workflow", "ResolveTransport", "no transport registry configured", nil)
	}
	if cfg.Transport.Name != "" {
		t, ok := transports.Get(cfg.Transport.Name)
		if !ok {
			return nil, NewExecutionError("workflow", "ResolveTransport",
				fmt.Sprintf("no transport registered under name %q", cfg.Transport.Name), nil)
		}
		return t, nil
	}
	return transports.Default()
}
