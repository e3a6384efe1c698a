package safety

import (
	"context"
	"testing"

	"github.com/kadirpekel/hector-pml/workflow"
)

type staticSource struct {
	perms map[string]workflow.ToolPermission
}

func (s staticSource) Permissions(context.Context) (map[string]workflow.ToolPermission, error) {
	return s.perms, nil
}

func TestCanSpeculateKnownReadOnlyTool(t *testing.T) {
	o := New(staticSource{perms: map[string]workflow.ToolPermission{
		"search": {Tool: "search", Approval: "auto", ReadOnly: true},
	}})
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	task := workflow.Task{ID: "t1", Kind: workflow.KindToolCall, Tool: "search"}
	if !o.CanSpeculate(task) {
		t.Error("expected an auto-approved read-only tool to be speculatable")
	}
	if o.RequiresValidation(task) {
		t.Error("RequiresValidation must be the negation of CanSpeculate")
	}
}

func TestCanSpeculateSideEffectsAlwaysFalse(t *testing.T) {
	o := New(staticSource{perms: map[string]workflow.ToolPermission{
		"search": {Tool: "search", Approval: "auto", ReadOnly: true},
	}})
	o.Refresh(context.Background())

	task := workflow.Task{ID: "t1", Kind: workflow.KindToolCall, Tool: "search", SideEffects: true}
	if o.CanSpeculate(task) {
		t.Error("a task declaring side effects must never be speculated, regardless of the tool's own permission row")
	}
}

// TestCanSpeculateCompositeRequiresAllContained verifies spec.md:127's
// conjunctive rule: a composite capability is only speculatable if every
// tool id it contains is itself auto-approved and read-only.
func TestCanSpeculateCompositeRequiresAllContained(t *testing.T) {
	perms := map[string]workflow.ToolPermission{
		"search": {Tool: "search", Approval: "auto", ReadOnly: true},
		"fetch":  {Tool: "fetch", Approval: "auto", ReadOnly: true},
		"write":  {Tool: "write", Approval: "hil", ReadOnly: false},
		"research_bundle": {
			Tool:     "research_bundle",
			Approval: "auto",
			ReadOnly: true,
			Contains: []string{"search", "fetch"},
		},
		"mixed_bundle": {
			Tool:     "mixed_bundle",
			Approval: "auto",
			ReadOnly: true,
			Contains: []string{"search", "write"},
		},
	}
	o := New(staticSource{perms: perms})
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	allSafe := workflow.Task{ID: "t1", Kind: workflow.KindToolCall, Tool: "research_bundle"}
	if !o.CanSpeculate(allSafe) {
		t.Error("expected a composite whose every contained tool is auto/read-only to be speculatable")
	}

	oneUnsafe := workflow.Task{ID: "t2", Kind: workflow.KindToolCall, Tool: "mixed_bundle"}
	if o.CanSpeculate(oneUnsafe) {
		t.Error("expected a composite containing even one non-auto tool to not be speculatable")
	}
}

func TestCanSpeculateUnknownToolIsConservative(t *testing.T) {
	o := New(staticSource{perms: map[string]workflow.ToolPermission{}})
	o.Refresh(context.Background())

	task := workflow.Task{ID: "t1", Kind: workflow.KindToolCall, Tool: "mystery"}
	if o.CanSpeculate(task) {
		t.Error("an unknown tool must default to not speculatable")
	}
	if !o.RequiresValidation(task) {
		t.Error("an unknown tool must require validation")
	}
}
