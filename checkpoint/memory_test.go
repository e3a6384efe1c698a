package checkpoint

import (
	"context"
	"testing"

	"github.com/kadirpekel/hector-pml/workflow"
)

func TestMemoryStoreLoadLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, Record{ID: "c0", WorkflowID: "wf1", Layer: 0, Hash: "h0"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, Record{ID: "c1", WorkflowID: "wf1", Layer: 1, Hash: "h1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, ok, err := s.Load(ctx, "wf1")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if rec.Layer != 1 || rec.ID != "c1" {
		t.Errorf("Load returned %+v, want the highest-layer record c1", rec)
	}
}

// TestMemoryStoreLoadByID verifies a checkpoint can be fetched by its own
// id regardless of whether it is the workflow's latest, satisfying §4.5's
// load(checkpoint_id) contract.
func TestMemoryStoreLoadByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, Record{ID: "c0", WorkflowID: "wf1", Layer: 0, Hash: "h0"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, Record{ID: "c1", WorkflowID: "wf1", Layer: 1, Hash: "h1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, ok, err := s.LoadByID(ctx, "c0")
	if err != nil || !ok {
		t.Fatalf("LoadByID: ok=%v err=%v", ok, err)
	}
	if rec.Layer != 0 {
		t.Errorf("LoadByID(c0) returned layer %d, want 0", rec.Layer)
	}

	if _, ok, err := s.LoadByID(ctx, "missing"); err != nil || ok {
		t.Fatalf("LoadByID(missing): ok=%v err=%v, want not found", ok, err)
	}
}

func TestCoalescingSkipsIdenticalHash(t *testing.T) {
	inner := NewMemoryStore()
	c := NewCoalescing(inner)
	ctx := context.Background()

	rec := Record{ID: "c0", WorkflowID: "wf1", Layer: 0, Hash: "same", State: workflow.NewWorkflowState("wf1")}
	if err := c.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec.ID = "c1"
	rec.Layer = 1
	if err := c.Save(ctx, rec); err != nil {
		t.Fatalf("Save (same hash): %v", err)
	}

	loaded, ok, err := inner.Load(ctx, "wf1")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if loaded.Layer != 0 {
		t.Errorf("expected the coalesced-away second save to never reach the inner store, got layer %d", loaded.Layer)
	}
}
