package retrieval

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/recallhq/deepmemory/internal/graphstore"
	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

type stubVectors struct {
	matches []vectorstore.Match
}

func (s *stubVectors) Search(context.Context, string, []float32, int, float64) ([]vectorstore.Match, error) {
	return s.matches, nil
}

func (s *stubVectors) Upsert(context.Context, []vectorstore.Point) error { return nil }

type stubGraph struct {
	nb       *graphstore.Neighborhood
	memories []models.Memory
}

func (s *stubGraph) GetNeighborhood(context.Context, string, []string) (*graphstore.Neighborhood, error) {
	return s.nb, nil
}

func (s *stubGraph) GetMemories(context.Context, string, []string) ([]models.Memory, error) {
	return s.memories, nil
}

func TestRetrieveBlendsScores(t *testing.T) {
	vectors := &stubVectors{matches: []vectorstore.Match{
		{ID: "m1", Score: 0.9, Payload: map[string]any{"content": "deploys are blue-green", "importance": 0.8}},
		{ID: "m2", Score: 0.6, Payload: map[string]any{"content": "invoices live in payments", "importance": 0.5}},
	}}
	graph := &stubGraph{
		nb: &graphstore.Neighborhood{
			Related: map[string]float64{"m2": 0.7, "m3": 0.8},
			Topics:  []models.ExtractedTopic{{Name: "deployments", Frequency: 4, Importance: 0.8}},
			Entities: []models.ExtractedEntity{
				{Name: "Payments", Type: models.EntityProject, Frequency: 3},
			},
		},
		memories: []models.Memory{{ID: "m3", Content: "payments uses sequential ids", Importance: 0.4}},
	}

	r := NewRetriever(stubEmbedder{}, vectors, graph, 0.7, 0.3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := r.Retrieve(context.Background(), &models.RetrieveContextRequest{
		UserInput: "how do we deploy?",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if len(resp.Memories) != 3 {
		t.Fatalf("expected 3 memories, got %d", len(resp.Memories))
	}
	// m1: 0.7*0.9 = 0.63; m2: 0.7*0.6 + 0.3*0.7 = 0.63; m3: 0.3*0.8 = 0.24.
	// Stable tie-break by id keeps m1 first.
	if resp.Memories[0].ID != "m1" || resp.Memories[1].ID != "m2" {
		t.Errorf("unexpected ranking: %s, %s", resp.Memories[0].ID, resp.Memories[1].ID)
	}
	last := resp.Memories[2]
	if last.ID != "m3" || last.Sources[0] != "graph" || last.SemanticScore != 0 {
		t.Errorf("graph-only memory mis-shaped: %+v", last)
	}

	for _, m := range resp.Memories {
		if m.ID == "m2" {
			if len(m.Sources) != 2 {
				t.Errorf("m2 should carry both sources, got %v", m.Sources)
			}
			if m.RelationScore != 0.7 {
				t.Errorf("m2 relation score = %f", m.RelationScore)
			}
		}
	}

	if resp.Context == "" {
		t.Error("context block must not be empty when memories exist")
	}
}

func TestRetrieveValidation(t *testing.T) {
	r := NewRetriever(stubEmbedder{}, &stubVectors{}, &stubGraph{nb: &graphstore.Neighborhood{}}, 0.7, 0.3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := r.Retrieve(context.Background(), &models.RetrieveContextRequest{UserInput: "   "}); err == nil {
		t.Fatal("blank user_input must be rejected")
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := NewRetriever(stubEmbedder{}, &stubVectors{}, &stubGraph{nb: &graphstore.Neighborhood{Related: map[string]float64{}}}, 0.7, 0.3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := r.Retrieve(context.Background(), &models.RetrieveContextRequest{UserInput: "anything"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(resp.Memories) != 0 || resp.Context != "" {
		t.Errorf("empty index should yield an empty response, got %+v", resp)
	}
}
