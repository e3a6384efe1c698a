package oracle

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kadirpekel/hector-pml/workflow"
)

// QdrantOracle implements workflow.CapabilityOracle against a Qdrant
// collection of capability descriptions, for deployments that already run
// Qdrant for other vector search needs and want one shared backend rather
// than the embedded ChromemOracle.
//
// Directly adapted from pkg/databases/qdrant.go's client construction and
// query shape (CollectionExists/CreateCollection/Upsert/Search), re-typed
// to return candidate tool ids instead of DatabaseProvider SearchResults.
type QdrantOracle struct {
	client     *qdrant.Client
	collection string
	embed      func(text string) ([]float32, error)
}

// QdrantConfig configures QdrantOracle's connection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// NewQdrantOracle connects to Qdrant at cfg.Host:cfg.Port. embed produces
// the query vector for a free-text intent or summary; QdrantOracle has no
// embedder of its own, mirroring pkg/databases/qdrant.go's reliance on a
// precomputed vector supplied by the caller.
func NewQdrantOracle(cfg QdrantConfig, embed func(text string) ([]float32, error)) (*QdrantOracle, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("[oracle:NewQdrantOracle] connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantOracle{client: client, collection: cfg.Collection, embed: embed}, nil
}

// RegisterCapability upserts toolID's description vector and its
// successor tool ids (for NextCapabilities) as point metadata.
func (o *QdrantOracle) RegisterCapability(ctx context.Context, toolID, description string, successors []string) error {
	vector, err := o.embed(description)
	if err != nil {
		return fmt.Errorf("[oracle:QdrantOracle.RegisterCapability] embedding description: %w", err)
	}

	exists, err := o.client.CollectionExists(ctx, o.collection)
	if err != nil {
		return fmt.Errorf("[oracle:QdrantOracle.RegisterCapability] checking collection: %w", err)
	}
	if !exists {
		if err := o.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: o.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size: uint64(len(vector)), Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("[oracle:QdrantOracle.RegisterCapability] creating collection: %w", err)
		}
	}

	successorsVal, err := qdrant.NewValue(joinComma(successors))
	if err != nil {
		return fmt.Errorf("[oracle:QdrantOracle.RegisterCapability] encoding successors: %w", err)
	}
	toolIDVal, err := qdrant.NewValue(toolID)
	if err != nil {
		return fmt.Errorf("[oracle:QdrantOracle.RegisterCapability] encoding tool id: %w", err)
	}

	_, err = o.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: o.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(toolID),
			Vectors: qdrant.NewVectors(vector...),
			Payload: map[string]*qdrant.Value{"tool_id": toolIDVal, "successors": successorsVal},
		}},
	})
	if err != nil {
		return fmt.Errorf("[oracle:QdrantOracle.RegisterCapability] upserting point: %w", err)
	}
	return nil
}

// FindCandidates implements workflow.CapabilityOracle.
func (o *QdrantOracle) FindCandidates(ctx context.Context, intent string, _ map[string]any) ([]string, error) {
	vector, err := o.embed(intent)
	if err != nil {
		return nil, fmt.Errorf("[oracle:QdrantOracle.FindCandidates] embedding intent: %w", err)
	}
	points, err := o.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: o.collection,
		Vector:         vector,
		Limit:          10,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("[oracle:QdrantOracle.FindCandidates] searching: %w", err)
	}
	ids := make([]string, 0, len(points.Result))
	for _, p := range points.Result {
		if v, ok := p.Payload["tool_id"]; ok {
			ids = append(ids, v.GetStringValue())
		}
	}
	return ids, nil
}

// AugmentDAG implements workflow.CapabilityOracle the same way ChromemOracle
// does: append one tool_call task per not-yet-present candidate, depending
// on the just-completed tasks.
func (o *QdrantOracle) AugmentDAG(ctx context.Context, current workflow.DAG, completed []string, newRequirement string, workflowContext map[string]any) (workflow.DAG, error) {
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

// NextCapabilities implements workflow.CapabilityOracle by finding the
// single closest capability to workflowSummary and returning its
// registered successors.
func (o *QdrantOracle) NextCapabilities(ctx context.Context, workflowSummary string) ([]string, error) {
	vector, err := o.embed(workflowSummary)
	if err != nil {
		return nil, fmt.Errorf("[oracle:QdrantOracle.NextCapabilities] embedding summary: %w", err)
	}
	points, err := o.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: o.collection,
		Vector:         vector,
		Limit:          1,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("[oracle:QdrantOracle.NextCapabilities] searching: %w", err)
	}
	if len(points.Result) == 0 {
		return nil, nil
	}
	v, ok := points.Result[0].Payload["successors"]
	if !ok {
		return nil, nil
	}
	return splitComma(v.GetStringValue()), nil
}

// Close releases the underlying Qdrant client connection.
func (o *QdrantOracle) Close() error {
	return o.client.Close()
}
