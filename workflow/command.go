package workflow

import (
	"sync"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// CommandType enumerates the commands a caller may enqueue. Commands are
// only drained at layer boundaries and decision points, never mid-layer
// (§4.3): a command enqueued while tasks are executing waits until the
// current layer finishes.
type CommandType string

const (
	CommandContinue         CommandType = "continue"
	CommandAbort            CommandType = "abort"
	CommandApprovalResponse CommandType = "approval_response"
	CommandReplanDAG        CommandType = "replan_dag"
)

// Command is a single FIFO queue entry.
type Command struct {
	Type     CommandType `json:"type"`
	Approved bool        `json:"approved,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	NewDAG   *DAG        `json:"new_dag,omitempty"`

	// Token, if set, is a signed JWT that must verify against the queue's
	// configured key before the command is accepted; used to authenticate
	// approval_response commands arriving over an external channel (e.g. a
	// HIL UI posting back to the workflow).
	Token string `json:"token,omitempty"`
}

// CommandQueue is a FIFO queue drained only at layer boundaries and
// decision points. It has no direct analog in the teacher's workflow
// package (which never models human-in-the-loop control inline); its
// enqueue/drain shape follows the same "buffer now, apply later" idiom
// the teacher uses for ExecutionContext.GetAllResults — snapshot, don't
// mutate concurrently with the reader.
type CommandQueue struct {
	mu      sync.Mutex
	pending []Command
	keySet  jwt.KeySet
}

// NewCommandQueue returns an empty queue. If keySet is non-nil, any
// Command carrying a Token is verified against it before being accepted;
// a keySet of nil disables verification (suitable for trusted in-process
// callers, e.g. tests and the local CLI).
func NewCommandQueue(keySet jwt.KeySet) *CommandQueue {
	return &CommandQueue{keySet: keySet}
}

// Enqueue appends cmd to the tail of the queue. If the queue has a key set
// configured and cmd carries a Token, the token must parse and verify or
// Enqueue returns an error and the command is not queued.
func (q *CommandQueue) Enqueue(cmd Command) error {
	if q.keySet != nil && cmd.Token != "" {
		if _, err := jwt.Parse([]byte(cmd.Token), jwt.WithKeySet(q.keySet), jwt.WithValidate(true)); err != nil {
			return err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, cmd)
	return nil
}

// Drain removes and returns every command currently queued, in FIFO
// order, leaving the queue empty. The controller calls this exactly once
// per layer boundary / decision point (§4.3) — never mid-layer.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len reports how many commands are currently queued, for diagnostics.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// supportedSigningAlgorithm is referenced by callers that mint tokens for
// tests; kept alongside the queue so the signing and verifying sides agree
// on algorithm choice without a separate constants file.
const supportedSigningAlgorithm = jwa.HS256
