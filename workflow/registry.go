package workflow

import (
	"fmt"

	"github.com/kadirpekel/hector-pml/registry"
)

// ExecutionError is the shared "[Component:Operation] message: cause"
// error shape used across the PML's registries, matching the teacher's
// own WorkflowExecutionError in workflow/registry.go.
type ExecutionError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func NewExecutionError(component, action, message string, err error) *ExecutionError {
	return &ExecutionError{Component: component, Action: action, Message: message, Err: err}
}

// TransportRegistry holds named ToolTransport implementations (mcp, grpc,
// http, or an in-process local transport for a host that keeps its tools
// in the same process), wrapping the same generic registry.BaseRegistry[T]
// the teacher's WorkflowExecutorRegistry wraps.
type TransportRegistry struct {
	*registry.BaseRegistry[ToolTransport]
}

func NewTransportRegistry() *TransportRegistry {
	return &TransportRegistry{BaseRegistry: registry.NewBaseRegistry[ToolTransport]()}
}

// Default returns the sole registered transport when exactly one is
// registered, erroring otherwise — most deployments wire a single
// transport and callers should not have to guess its name.
func (r *TransportRegistry) Default() (ToolTransport, error) {
	names := r.List()
	if len(names) != 1 {
		return nil, NewExecutionError("TransportRegistry", "Default",
			fmt.Sprintf("expected exactly one registered transport, found %d", len(names)), nil)
	}
	t, _ := r.Get(names[0])
	return t, nil
}

// OracleRegistry holds named CapabilityOracle implementations (chromem,
// qdrant, an out-of-process plugin adapter).
type OracleRegistry struct {
	*registry.BaseRegistry[CapabilityOracle]
}

func NewOracleRegistry() *OracleRegistry {
	return &OracleRegistry{BaseRegistry: registry.NewBaseRegistry[CapabilityOracle]()}
}

// CheckpointRegistry holds named CheckpointStore backends (memory, etcd, zk).
type CheckpointRegistry struct {
	*registry.BaseRegistry[CheckpointStore]
}

func NewCheckpointRegistry() *CheckpointRegistry {
	return &CheckpointRegistry{BaseRegistry: registry.NewBaseRegistry[CheckpointStore]()}
}

// ControllerRegistry holds named, pre-wired Controllers — used by a host
// process embedding the PML that serves more than one workflow
// definition concurrently, each with its own collaborator wiring.
type ControllerRegistry struct {
	*registry.BaseRegistry[*Controller]
}

func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{BaseRegistry: registry.NewBaseRegistry[*Controller]()}
}
