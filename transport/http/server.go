// Package http is a thin, explicitly optional embedding surface over
// workflow.Controller: it exposes §6's three external operations
// (execute, resume, abort) as REST endpoints and the controller's event
// bus as a Server-Sent Events stream, for a dashboard or CLI that wants to
// drive a workflow without linking the PML core directly into its process.
//
// It is not a replacement for a real deployment's control plane — there is
// no auth beyond whatever CommandQueue's JWT verification already does for
// approval_response commands — the same embedding role pkg/runner plays
// for the teacher's agent workflows, generalized to PML's task DAGs.
//
// Routing is github.com/go-chi/chi/v5, grounded on the teacher's own
// pkg/transport/http_metrics_middleware.go (chi.RouteContext-based route
// pattern extraction, wrapped ResponseWriter with Flush for SSE).
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/hector-pml/workflow"
)

// Server serves one workflow.Controller's execute/resume/abort/events
// surface over HTTP.
type Server struct {
	controller *workflow.Controller
	router     chi.Router
}

// NewServer builds a Server wrapping controller and registers its routes.
func NewServer(controller *workflow.Controller) *Server {
	s := &Server{controller: controller, router: chi.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler, so Server can be passed directly to
// http.ListenAndServe or mounted under an existing chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Post("/workflows/{workflowID}/execute", s.handleExecute)
	s.router.Post("/workflows/{workflowID}/resume", s.handleResume)
	s.router.Post("/workflows/{workflowID}/abort", s.handleAbort)
	s.router.Post("/workflows/{workflowID}/commands", s.handleCommand)
	s.router.Get("/workflows/{workflowID}/events", s.handleEvents)
}

type executeRequest struct {
	DAG            workflow.DAG   `json:"dag"`
	InitialContext map[string]any `json:"initial_context,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := s.controller.Execute(r.Context(), workflowID, req.DAG, req.InitialContext)
	writeResult(w, state, err)
}

type resumeRequest struct {
	DAG          workflow.DAG `json:"dag"`
	CheckpointID string       `json:"checkpoint_id"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := s.controller.Resume(r.Context(), workflowID, req.DAG, req.CheckpointID)
	writeResult(w, state, err)
}

// handleAbort enqueues a CommandAbort; the controller only drains the
// queue at a layer boundary or gate (§4.3), so this returns as soon as the
// command is accepted, not once the workflow has actually stopped.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := s.controller.Commands().Enqueue(workflow.Command{
		Type:   workflow.CommandAbort,
		Reason: body.Reason,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleCommand accepts any queued command (approval_response, replan_dag,
// continue), letting a HIL UI post an approval decision back without the
// server needing a dedicated endpoint per command type.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd workflow.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.controller.Commands().Enqueue(cmd); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleEvents streams the controller's event bus as Server-Sent Events
// until the client disconnects. Each subscriber gets its own bounded
// channel (workflow.EventBus.Subscribe); a slow HTTP client only risks its
// own dropped events, never backpressure on the workflow itself.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	ch, unsubscribe := s.controller.Events().Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

func writeResult(w http.ResponseWriter, state workflow.WorkflowState, err error) {
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(state)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// SSE streams to drain.
const shutdownTimeout = 5 * time.Second

// Shutdown gives callers a convenience wrapper over http.Server.Shutdown
// with the package's default drain timeout, for hosts that don't want to
// thread their own context through.
func Shutdown(ctx context.Context, srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
