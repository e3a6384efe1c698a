package workflow

import (
	"context"
	"time"
)

// ToolTransport is the wire-protocol-agnostic contract C6's invoker calls
// through. The wire protocol itself (MCP, gRPC, HTTP) is out of scope for
// this package; concrete adapters live under transport/.
type ToolTransport interface {
	Call(ctx context.Context, tool string, args map[string]any, deadline time.Time) (any, error)
}

// CapabilityOracle resolves an intent into candidate tool/task paths and
// augments an in-flight DAG on replan, per §6.
type CapabilityOracle interface {
	FindCandidates(ctx context.Context, intent string, workflowContext map[string]any) ([]string, error)
	AugmentDAG(ctx context.Context, current DAG, completed []string, newRequirement string, workflowContext map[string]any) (DAG, error)
	NextCapabilities(ctx context.Context, workflowSummary string) ([]string, error)
}

// CheckpointRecord is the payload persisted by a CheckpointStore; defined
// here (rather than imported from package checkpoint) to keep workflow
// free of a dependency on any one backend, following the same
// interface-in-the-consumer idiom the teacher uses for
// pkg/runner/runner.go's CheckpointManager parameter.
type CheckpointRecord struct {
	ID         string        `json:"id"`
	WorkflowID string        `json:"workflow_id"`
	Layer      int           `json:"layer"`
	State      WorkflowState `json:"state"`
	Hash       string        `json:"hash"`
	SavedAt    int64         `json:"saved_at_unix_ms"`
}

// CheckpointStore persists and retrieves CheckpointRecords, coalescing
// saves with identical content hashes per §4.5/P9.
type CheckpointStore interface {
	Save(ctx context.Context, rec CheckpointRecord) error
	Load(ctx context.Context, workflowID string) (CheckpointRecord, bool, error)
	// LoadByID looks a single checkpoint up by its own id, independent of
	// which workflow it belongs to or whether it is that workflow's most
	// recent one, per §4.5's load(checkpoint_id) -> (state, layer,
	// workflow_id).
	LoadByID(ctx context.Context, checkpointID string) (CheckpointRecord, bool, error)
	Prune(ctx context.Context, workflowID string, keepLast int) error
}

// Trace is one record of a completed (or failed) task execution, handed
// to a TraceStore for the feedback-publishing component (C14). The same
// shape covers both a live controller step and one step of an
// exploratory path (C12): Exploratory/Confidence/PathID are zero-valued
// for the former.
type Trace struct {
	WorkflowID  string  `json:"workflow_id"`
	TaskID      string  `json:"task_id"`
	Tool        string  `json:"tool,omitempty"`
	Status      Status  `json:"status"`
	Kind        string  `json:"kind,omitempty"` // classify.Kind, stringified
	DurationMS  int64   `json:"duration_ms"`
	Mocked      bool    `json:"mocked"`
	FromCache   bool    `json:"from_cache"`
	Exploratory bool    `json:"exploratory,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	PathID      string  `json:"path_id,omitempty"`
}

// TraceStore records Traces for offline learning-signal consumption. A
// publish failure is swallowed with a log per §7 — implementations are not
// expected to be perfectly reliable.
type TraceStore interface {
	Record(ctx context.Context, tr Trace) error
}

// SpeculationCacheBackend is the pluggable storage behind C10's
// fingerprint → result cache.
type SpeculationCacheBackend interface {
	Get(ctx context.Context, fingerprint string) (TaskResult, bool, error)
	Put(ctx context.Context, fingerprint string, result TaskResult, ttl time.Duration) error
	Evict(ctx context.Context, fingerprint string) error
}

// ToolPermission is one row of the table a PermissionsSource supplies to
// C9's safety oracle.
type ToolPermission struct {
	Tool     string `json:"tool"`
	Approval string `json:"approval"` // "auto" | "hil"
	Scope    string `json:"scope"`    // "minimal" | "elevated"
	ReadOnly bool   `json:"read_only"`
	// Contains lists the tool ids a composite capability expands to. A
	// composite can_speculate only when every one of these is itself
	// auto-approved and read-only (spec.md:127's conjunctive rule).
	Contains []string `json:"contains,omitempty"`
}

// PermissionsSource supplies the permissions table consumed by C9.
type PermissionsSource interface {
	Permissions(ctx context.Context) (map[string]ToolPermission, error)
}
