// Package safety implements C9, the safety oracle deciding whether a
// workflow.Task may be speculated (can_speculate) or must wait for a
// human decision (requires_validation), per P7's complementary-predicate
// invariant.
//
// Grounded on pkg/tool/tool.go's Predicate/Combine/Or/Not combinator
// idiom, generalized from "should this tool be offered to an LLM" to
// "should this task ever be speculatively executed".
package safety

import (
	"context"
	"sync"

	"github.com/kadirpekel/hector-pml/workflow"
)

// Predicate evaluates a task against the current permissions table.
type Predicate func(perms map[string]workflow.ToolPermission, task workflow.Task) bool

// Combine ANDs predicates together.
func Combine(predicates ...Predicate) Predicate {
	return func(perms map[string]workflow.ToolPermission, task workflow.Task) bool {
		for _, p := range predicates {
			if !p(perms, task) {
				return false
			}
		}
		return true
	}
}

// Or ORs predicates together.
func Or(predicates ...Predicate) Predicate {
	return func(perms map[string]workflow.ToolPermission, task workflow.Task) bool {
		for _, p := range predicates {
			if p(perms, task) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(perms map[string]workflow.ToolPermission, task workflow.Task) bool {
		return !p(perms, task)
	}
}

// knownTool reports whether task.Tool has an entry in perms. code_exec
// tasks have no tool and are treated as unknown for this predicate;
// CanSpeculate refuses every task that is not a tool_call.
func knownTool(perms map[string]workflow.ToolPermission, task workflow.Task) bool {
	if task.Kind != workflow.KindToolCall {
		return false
	}
	_, ok := perms[task.Tool]
	return ok
}

func isAutoApproval(perms map[string]workflow.ToolPermission, task workflow.Task) bool {
	p, ok := perms[task.Tool]
	return ok && p.Approval == "auto"
}

func isReadOnly(perms map[string]workflow.ToolPermission, task workflow.Task) bool {
	p, ok := perms[task.Tool]
	return ok && p.ReadOnly
}

func hasSideEffects(_ map[string]workflow.ToolPermission, task workflow.Task) bool {
	return task.SideEffects
}

// Oracle evaluates CanSpeculate/RequiresValidation against a live
// permissions table, refreshed from a workflow.PermissionsSource.
type Oracle struct {
	mu     sync.RWMutex
	perms  map[string]workflow.ToolPermission
	source workflow.PermissionsSource
}

// New returns an Oracle with an empty table; call Refresh before first use.
func New(source workflow.PermissionsSource) *Oracle {
	return &Oracle{perms: map[string]workflow.ToolPermission{}, source: source}
}

// Refresh reloads the permissions table from source. Safe to call
// concurrently with CanSpeculate/RequiresValidation.
func (o *Oracle) Refresh(ctx context.Context) error {
	perms, err := o.source.Permissions(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.perms = perms
	o.mu.Unlock()
	return nil
}

// canSpeculatePredicate: a tool_call is speculatable only if it is a
// known tool, auto-approved, read-only, and the task itself declares no
// side effects (P6: a side_effects=true task is never speculated,
// regardless of the tool's own permission row).
var canSpeculatePredicate = Combine(knownTool, isAutoApproval, isReadOnly, Not(hasSideEffects))

// isCompositeSafe reports whether every tool id listed in p.Contains is
// itself auto-approved and read-only. A composite capability's own
// Approval/ReadOnly fields are ignored for this check: its safety is
// entirely derived from its constituents (spec.md:127 — a composite
// can_speculate only when ALL of the tools it expands to do).
func isCompositeSafe(perms map[string]workflow.ToolPermission, p workflow.ToolPermission) bool {
	for _, id := range p.Contains {
		cp, ok := perms[id]
		if !ok || cp.Approval != "auto" || !cp.ReadOnly {
			return false
		}
	}
	return true
}

// CanSpeculate implements can_speculate(t). Unknown tools are
// conservative: false (P7).
func (o *Oracle) CanSpeculate(task workflow.Task) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if task.Kind != workflow.KindToolCall {
		return false
	}
	if task.SideEffects {
		return false
	}
	if p, ok := o.perms[task.Tool]; ok && len(p.Contains) > 0 {
		return isCompositeSafe(o.perms, p)
	}
	return canSpeculatePredicate(o.perms, task)
}

// RequiresValidation implements requires_validation(t) = ¬can_speculate(t),
// satisfying P7's complementary-predicate invariant by construction: it is
// defined directly in terms of CanSpeculate rather than independently, so
// the two can never drift out of sync.
func (o *Oracle) RequiresValidation(task workflow.Task) bool {
	return !o.CanSpeculate(task)
}

// PermissionFor returns the permission row for task.Tool, if any.
func (o *Oracle) PermissionFor(task workflow.Task) (workflow.ToolPermission, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.perms[task.Tool]
	return p, ok
}
