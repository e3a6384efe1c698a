package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kadirpekel/hector-pml/workflow"
)

type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, task workflow.Task, _ map[string]any, _ map[string]workflow.TaskResult) (workflow.TaskResult, error) {
	return workflow.TaskResult{TaskID: task.ID, Status: workflow.StatusSuccess, Output: "ok"}, nil
}

type noopResolver struct{}

func (noopResolver) Resolve(workflow.WorkflowState, workflow.Task) (map[string]any, error) {
	return map[string]any{}, nil
}

func newTestServer() *Server {
	controller := workflow.NewController(workflow.DefaultControllerConfig(), echoExecutor{}, noopResolver{})
	return NewServer(controller)
}

func TestHandleExecute(t *testing.T) {
	srv := newTestServer()

	body, _ := json.Marshal(executeRequest{
		DAG: workflow.DAG{Tasks: []workflow.Task{{ID: "t1", Kind: workflow.KindToolCall, Tool: "mock:tool"}}},
	})
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-1/execute", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state workflow.WorkflowState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state.Tasks["t1"].Status != workflow.StatusSuccess {
		t.Fatalf("expected t1 to succeed, got %+v", state.Tasks["t1"])
	}
}

func TestHandleExecuteBadBody(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-1/execute", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleAbortEnqueuesCommand(t *testing.T) {
	srv := newTestServer()

	body, _ := json.Marshal(map[string]string{"reason": "operator stop"})
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-1/abort", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if srv.controller.Commands().Len() != 1 {
		t.Fatalf("expected 1 queued command, got %d", srv.controller.Commands().Len())
	}
}

func TestHandleCommandEnqueuesApprovalResponse(t *testing.T) {
	srv := newTestServer()

	body, _ := json.Marshal(workflow.Command{Type: workflow.CommandApprovalResponse, Approved: true})
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf-1/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if srv.controller.Commands().Len() != 1 {
		t.Fatalf("expected 1 queued command, got %d", srv.controller.Commands().Len())
	}
}

func TestHandleEventsStreamsPublishedEvents(t *testing.T) {
	srv := newTestServer()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf-1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	srv.controller.Events().Publish(workflow.Event{Type: workflow.EventWorkflowDone, WorkflowID: "wf-1"})

	cancel()
	<-done

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("workflow_done")) {
		t.Fatalf("expected streamed body to contain the published event, got %q", rec.Body.String())
	}
}
