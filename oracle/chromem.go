package oracle

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/hector-pml/workflow"
)

// capabilityDim is the dimensionality of the deterministic bag-of-hashes
// embedding below. chromem-go needs an embedding.EmbeddingFunc to index and
// query documents; the teacher's ChromemProvider receives precomputed
// vectors from an external embedder (pkg/vector/chromem.go's "identity"
// function), which this package does not have access to. hashEmbed is a
// self-contained stand-in so ChromemOracle needs nothing beyond chromem-go
// itself — it is a deterministic bag-of-tokens fingerprint, not a semantic
// embedding, and is only precise enough for exact/overlapping-keyword
// matches between an intent and a capability's registered description.
const capabilityDim = 64

// ChromemOracle implements workflow.CapabilityOracle over an embedded
// chromem-go collection of registered capability descriptions. It is the
// zero-dependency default: no external vector database required.
//
// Grounded on pkg/vector/chromem.go's collection-caching/provider shape,
// re-pointed at capability descriptions instead of document chunks.
type ChromemOracle struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemOracle returns a ChromemOracle backed by an in-memory
// chromem-go collection named "capabilities".
func NewChromemOracle(ctx context.Context) (*ChromemOracle, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection("capabilities", nil, hashEmbed)
	if err != nil {
		return nil, fmt.Errorf("[oracle:NewChromemOracle] creating collection: %w", err)
	}
	return &ChromemOracle{db: db, collection: col}, nil
}

// RegisterCapability indexes toolID under description, so a later
// FindCandidates(intent, ...) can surface it via keyword-overlap
// similarity. successors, if non-empty, seeds NextCapabilities' answer for
// this tool.
func (o *ChromemOracle) RegisterCapability(ctx context.Context, toolID, description string, successors []string) error {
	doc := chromem.Document{
		ID:       toolID,
		Content:  description,
		Metadata: map[string]string{"successors": joinComma(successors)},
	}
	if err := o.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("[oracle:ChromemOracle.RegisterCapability] %w", err)
	}
	return nil
}

// FindCandidates implements workflow.CapabilityOracle.
func (o *ChromemOracle) FindCandidates(ctx context.Context, intent string, _ map[string]any) ([]string, error) {
	n := o.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if n > 10 {
		n = 10
	}
	results, err := o.collection.Query(ctx, intent, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("[oracle:ChromemOracle.FindCandidates] %w", err)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

// AugmentDAG implements workflow.CapabilityOracle by finding candidates for
// newRequirement and appending one tool_call task per candidate that isn't
// already present, depending on the workflow's just-completed tasks so the
// replanned work runs after them.
func (o *ChromemOracle) AugmentDAG(ctx context.Context, current workflow.DAG, completed []string, newRequirement string, workflowContext map[string]any) (workflow.DAG, error) {
	candidates, err := o.FindCandidates(ctx, newRequirement, workflowContext)
	if err != nil {
		return current, err
	}
	existing := current.ByID()
	out := current
	for _, toolID := range candidates {
		if _, ok := existing[toolID]; ok {
			continue
		}
		out.Tasks = append(out.Tasks, workflow.Task{
			ID: toolID, Kind: workflow.KindToolCall, Tool: toolID, DependsOn: append([]string{}, completed...),
		})
	}
	return out, nil
}

// NextCapabilities implements workflow.CapabilityOracle by querying the
// collection with the workflow summary text, returning the successors
// metadata of the single best match.
func (o *ChromemOracle) NextCapabilities(ctx context.Context, workflowSummary string) ([]string, error) {
	if o.collection.Count() == 0 {
		return nil, nil
	}
	results, err := o.collection.Query(ctx, workflowSummary, 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("[oracle:ChromemOracle.NextCapabilities] %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return splitComma(results[0].Metadata["successors"]), nil
}

func joinComma(xs []string) string {
	out := ""
	for i, x := range xs {
		if i > 0 {
			out += ","
		}
		out += x
	}
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

// hashEmbed produces a deterministic capabilityDim-length vector by hashing
// each lower-cased, whitespace-separated token of text with SHA-256 into one
// bucket and counting tokens per bucket, so texts sharing keywords share
// non-zero buckets under chromem-go's cosine similarity. Text with no tokens
// maps to a fixed unit vector. See capabilityDim's doc comment for why this
// replaces a real semantic embedder here.
func hashEmbed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, capabilityDim)
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		vec[int(sum[0])%capabilityDim]++
	}
	if len(tokens) == 0 {
		vec[0] = 1
	}
	return vec, nil
}
