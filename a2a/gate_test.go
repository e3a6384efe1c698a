package a2a

import (
	"context"
	"errors"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/hector-pml/workflow"
)

type fakePrompter struct {
	reply *a2a.Message
	err   error
	sent  *a2a.Message
}

func (f *fakePrompter) Prompt(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	f.sent = msg
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func approvalMessage(decision string) *a2a.Message {
	return a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{Data: map[string]any{
		"type":         "tool_approval",
		"decision":     decision,
		"tool_call_id": "call-1",
		"task_id":      "t1",
	}})
}

func TestExtractApprovalResponseDataPart(t *testing.T) {
	resp := ExtractApprovalResponse(approvalMessage("approve"))
	if resp == nil || resp.Decision != "approve" || resp.TaskID != "t1" || resp.ToolCallID != "call-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExtractApprovalResponseTextPart(t *testing.T) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "deny"})
	resp := ExtractApprovalResponse(msg)
	if resp == nil || resp.Decision != "deny" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExtractApprovalResponseUnrecognized(t *testing.T) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "what?"})
	if resp := ExtractApprovalResponse(msg); resp != nil {
		t.Fatalf("expected nil, got %+v", resp)
	}
}

func TestExtractApprovalResponseNilMessage(t *testing.T) {
	if resp := ExtractApprovalResponse(nil); resp != nil {
		t.Fatalf("expected nil, got %+v", resp)
	}
}

func TestGateRequestApprovalApprove(t *testing.T) {
	prompter := &fakePrompter{reply: approvalMessage("approve")}
	gate := NewGate(prompter)

	task := workflow.Task{ID: "t1", Tool: "local:execute_command"}
	state := workflow.NewWorkflowState("wf-1")

	decision, err := gate.RequestApproval(context.Background(), state, task)
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if decision.Outcome != "approve" {
		t.Fatalf("expected approve, got %+v", decision)
	}
	if prompter.sent == nil {
		t.Fatal("expected a message to be sent through the prompter")
	}
}

func TestGateRequestApprovalDeny(t *testing.T) {
	prompter := &fakePrompter{reply: approvalMessage("deny")}
	gate := NewGate(prompter)

	task := workflow.Task{ID: "t1", Tool: "local:execute_command"}
	state := workflow.NewWorkflowState("wf-1")

	decision, err := gate.RequestApproval(context.Background(), state, task)
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if decision.Outcome != "reject" {
		t.Fatalf("expected reject, got %+v", decision)
	}
}

func TestGateRequestApprovalUnrecognizedReplyRejects(t *testing.T) {
	prompter := &fakePrompter{reply: a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "huh"})}
	gate := NewGate(prompter)

	task := workflow.Task{ID: "t1"}
	state := workflow.NewWorkflowState("wf-1")

	decision, err := gate.RequestApproval(context.Background(), state, task)
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if decision.Outcome != "reject" {
		t.Fatalf("expected reject on unrecognized reply, got %+v", decision)
	}
}

func TestGateRequestApprovalPrompterError(t *testing.T) {
	prompter := &fakePrompter{err: errors.New("transport down")}
	gate := NewGate(prompter)

	task := workflow.Task{ID: "t1"}
	state := workflow.NewWorkflowState("wf-1")

	if _, err := gate.RequestApproval(context.Background(), state, task); err == nil {
		t.Fatal("expected an error from a failing prompter")
	}
}
