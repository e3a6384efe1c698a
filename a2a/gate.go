// Package a2a adapts human-in-the-loop approval onto the A2A message and
// artifact shape (github.com/a2aproject/a2a-go), so a HIL prompt and its
// reply look like any other A2A turn to a host already speaking A2A to its
// agents.
//
// Grounded on the teacher's v2/server/parts.go, which encodes the same
// approve/deny exchange as a DataPart with type "tool_approval" (see
// ExtractApprovalResponse below, carried over near verbatim) and on
// v2/model/aggregator.go's DataPart-as-structured-payload convention.
package a2a

import (
	"context"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/hector-pml/workflow"
)

// ApprovalResponse is a parsed reply to a HIL approval request.
type ApprovalResponse struct {
	Decision   string // "approve" or "deny"
	ToolCallID string
	TaskID     string
}

// ExtractApprovalResponse checks whether msg carries an approval decision,
// either as a structured DataPart (type: "tool_approval") or a plain
// TextPart reading "approve"/"deny" and its synonyms. Returns nil if msg is
// not an approval response.
func ExtractApprovalResponse(msg *a2a.Message) *ApprovalResponse {
	if msg == nil || len(msg.Parts) == 0 {
		return nil
	}

	for _, part := range msg.Parts {
		if dp, ok := part.(a2a.DataPart); ok {
			if partType, ok := dp.Data["type"].(string); ok && partType == "tool_approval" {
				decision, _ := dp.Data["decision"].(string)
				toolCallID, _ := dp.Data["tool_call_id"].(string)
				taskID, _ := dp.Data["task_id"].(string)
				if decision != "" {
					return &ApprovalResponse{Decision: decision, ToolCallID: toolCallID, TaskID: taskID}
				}
			}
		}
		if tp, ok := part.(a2a.TextPart); ok {
			switch tp.Text {
			case "approve", "approved":
				return &ApprovalResponse{Decision: "approve"}
			case "deny", "denied", "reject", "rejected":
				return &ApprovalResponse{Decision: "deny"}
			}
		}
	}

	return nil
}

// Prompter delivers a HIL approval request as an A2A message and returns
// the human's reply, however the host surfaces the exchange — a CLI
// prompt, a chat UI turn, a webhook round-trip.
type Prompter interface {
	Prompt(ctx context.Context, msg *a2a.Message) (*a2a.Message, error)
}

// Gate implements workflow.HILGate over a Prompter.
type Gate struct {
	prompter Prompter
}

// NewGate returns a Gate that prompts through prompter.
func NewGate(prompter Prompter) *Gate {
	return &Gate{prompter: prompter}
}

var _ workflow.HILGate = (*Gate)(nil)

// RequestApproval builds an A2A message describing task, sends it through
// g.prompter, and translates the reply into a workflow.Decision. A reply
// that isn't a recognizable approval response is treated as a denial: a
// checkpoint=hil task proceeds only on an explicit approve.
func (g *Gate) RequestApproval(ctx context.Context, state workflow.WorkflowState, task workflow.Task) (workflow.Decision, error) {
	msg := a2a.NewMessage(a2a.MessageRoleAgent,
		a2a.TextPart{Text: fmt.Sprintf("Approval required for task %q (tool %q) in workflow %q", task.ID, task.Tool, state.WorkflowID)},
		a2a.DataPart{Data: map[string]any{
			"type":    "tool_approval_request",
			"task_id": task.ID,
			"tool":    task.Tool,
		}},
	)

	reply, err := g.prompter.Prompt(ctx, msg)
	if err != nil {
		return workflow.Decision{}, fmt.Errorf("[a2a:Gate] requesting approval: %w", err)
	}

	resp := ExtractApprovalResponse(reply)
	if resp == nil || resp.Decision != "approve" {
		reason := "no approval response recognized"
		if resp != nil {
			reason = resp.Decision
		}
		return workflow.Decision{Outcome: "reject", Reason: reason}, nil
	}

	return workflow.Decision{Outcome: "approve", Reason: resp.Decision}, nil
}
