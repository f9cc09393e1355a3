package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/recallhq/deepmemory/internal/embedding"
	"github.com/recallhq/deepmemory/internal/graphstore"
	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/updater"
)

const defaultMaxMemories = 5

// GraphReader is the slice of the graph store retrieval needs.
type GraphReader interface {
	GetNeighborhood(ctx context.Context, namespace string, memoryIDs []string) (*graphstore.Neighborhood, error)
	GetMemories(ctx context.Context, namespace string, ids []string) ([]models.Memory, error)
}

// Retriever composes a context block from the persisted memory state: vector
// similarity first, then the graph neighborhood around the hits.
type Retriever struct {
	embedder       embedding.Embedder
	vectors        updater.VectorIndex
	graph          GraphReader
	semanticWeight float64
	relationWeight float64
	logger         *slog.Logger
}

func NewRetriever(embedder embedding.Embedder, vectors updater.VectorIndex, graph GraphReader, semanticWeight, relationWeight float64, logger *slog.Logger) *Retriever {
	return &Retriever{
		embedder:       embedder,
		vectors:        vectors,
		graph:          graph,
		semanticWeight: semanticWeight,
		relationWeight: relationWeight,
		logger:         logger,
	}
}

// Retrieve ranks stored memories against the user input and renders them
// with their entity and topic surroundings.
func (r *Retriever) Retrieve(ctx context.Context, req *models.RetrieveContextRequest) (*models.RetrieveContextResponse, error) {
	if req == nil || strings.TrimSpace(req.UserInput) == "" {
		return nil, fmt.Errorf("user_input is required")
	}
	namespace := req.Namespace
	if namespace == "" {
		namespace = updater.DefaultNamespace
	}
	maxMemories := req.MaxMemories
	if maxMemories <= 0 {
		maxMemories = defaultMaxMemories
	}

	vec, err := r.embedder.Embed(ctx, req.UserInput)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.vectors.Search(ctx, namespace, vec, maxMemories, 0)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ranked := make(map[string]*models.RetrievedMemory, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		mem := &models.RetrievedMemory{
			ID:            m.ID,
			Content:       payloadString(m.Payload, "content"),
			Importance:    payloadFloat(m.Payload, "importance"),
			SemanticScore: m.Score,
			Sources:       []string{"vector"},
		}
		ranked[m.ID] = mem
		ids = append(ids, m.ID)
	}

	resp := &models.RetrieveContextResponse{}

	// The graph widens the result set; its loss degrades retrieval to pure
	// vector ranking.
	nb, err := r.graph.GetNeighborhood(ctx, namespace, ids)
	if err != nil {
		r.logger.Warn("graph neighborhood lookup failed", "error", err)
		nb = &graphstore.Neighborhood{Related: map[string]float64{}}
	}
	resp.Entities = nb.Entities
	resp.Topics = nb.Topics

	var graphOnly []string
	for id, score := range nb.Related {
		if mem, ok := ranked[id]; ok {
			mem.RelationScore = score
			mem.Sources = append(mem.Sources, "graph")
			continue
		}
		graphOnly = append(graphOnly, id)
		ranked[id] = &models.RetrievedMemory{
			ID:            id,
			RelationScore: score,
			Sources:       []string{"graph"},
		}
	}
	if len(graphOnly) > 0 {
		fetched, err := r.graph.GetMemories(ctx, namespace, graphOnly)
		if err != nil {
			r.logger.Warn("graph memory fetch failed", "error", err)
		}
		for _, m := range fetched {
			if mem, ok := ranked[m.ID]; ok {
				mem.Content = m.Content
				mem.Importance = m.Importance
			}
		}
	}

	memories := make([]models.RetrievedMemory, 0, len(ranked))
	for _, mem := range ranked {
		if mem.Content == "" {
			continue
		}
		mem.Relevance = r.semanticWeight*mem.SemanticScore + r.relationWeight*mem.RelationScore
		memories = append(memories, *mem)
	}
	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].Relevance != memories[j].Relevance {
			return memories[i].Relevance > memories[j].Relevance
		}
		return memories[i].ID < memories[j].ID
	})
	if len(memories) > maxMemories {
		memories = memories[:maxMemories]
	}
	resp.Memories = memories
	resp.Context = renderContext(resp)
	return resp, nil
}

// renderContext produces the compact text block handed to the agent.
func renderContext(resp *models.RetrieveContextResponse) string {
	if len(resp.Memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	for i, m := range resp.Memories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Content)
	}
	if len(resp.Topics) > 0 {
		names := make([]string, 0, len(resp.Topics))
		for _, t := range resp.Topics {
			names = append(names, t.Name)
		}
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(names, ", "))
	}
	if len(resp.Entities) > 0 {
		names := make([]string, 0, len(resp.Entities))
		for _, e := range resp.Entities {
			names = append(names, e.Name)
		}
		fmt.Fprintf(&b, "Entities: %s\n", strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func payloadString(p map[string]any, key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

func payloadFloat(p map[string]any, key string) float64 {
	if p == nil {
		return 0
	}
	f, _ := p[key].(float64)
	return f
}
