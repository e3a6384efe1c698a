// Package oracle provides adapters for workflow.CapabilityOracle, the
// external collaborator C13 consults to expand an intent into candidate
// paths (C12), augment a running DAG on replan (§4.13 step 6), and predict
// likely next capabilities after workflow_complete (C11's
// predict_next_node).
//
// workflow.CapabilityOracle itself is declared in package workflow (see
// workflow/contracts.go) since the core only ever consumes it; this
// package supplies concrete adapters over real backends.
package oracle

import "github.com/kadirpekel/hector-pml/workflow"

// Candidate is one ranked capability/path entry an adapter returns before
// it is flattened into workflow.CapabilityOracle's plain []string
// contract; adapters keep this richer shape internally for scoring, then
// project it down to tool/capability ids at the contract boundary.
type Candidate struct {
	ToolID string
	Score  float32
}

// candidateIDs projects a ranked candidate list down to the
// []string contract workflow.CapabilityOracle requires, highest score
// first (callers are expected to have already sorted descending).
func candidateIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ToolID
	}
	return ids
}

var _ workflow.CapabilityOracle = (*ChromemOracle)(nil)
var _ workflow.CapabilityOracle = (*QdrantOracle)(nil)
var _ workflow.CapabilityOracle = (*PluginOracle)(nil)
