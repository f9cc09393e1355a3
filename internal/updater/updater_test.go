package updater

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/recallhq/deepmemory/internal/analysis"
	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/sensitive"
	"github.com/recallhq/deepmemory/internal/vectorstore"
)

type stubEmbedder struct {
	mu    sync.Mutex
	seen  []string
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.seen = append(s.seen, text)
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubVectors struct {
	mu        sync.Mutex
	matches   []vectorstore.Match
	upserted  []vectorstore.Point
	searchErr error
	upsertErr error
}

func (s *stubVectors) Search(_ context.Context, _ string, _ []float32, _ int, _ float64) ([]vectorstore.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.matches, nil
}

func (s *stubVectors) Upsert(_ context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted = append(s.upserted, points...)
	return nil
}

type stubGraph struct {
	mu          sync.Mutex
	meta        map[string]models.IngestMeta
	metaLookups int
	memories    []models.Memory
	related     int
	metaErr     error
	commitErr   error
}

func newStubGraph() *stubGraph {
	return &stubGraph{meta: make(map[string]models.IngestMeta)}
}

func (s *stubGraph) UpsertSession(context.Context, string, string) error { return nil }
func (s *stubGraph) UpsertEntity(context.Context, string, models.ExtractedEntity) error {
	return nil
}
func (s *stubGraph) UpsertTopic(context.Context, string, models.ExtractedTopic) error { return nil }
func (s *stubGraph) UpsertEvent(context.Context, string, string, string, models.ExtractedEvent) error {
	return nil
}

func (s *stubGraph) UpsertMemory(_ context.Context, _, _ string, m models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = append(s.memories, m)
	return nil
}

func (s *stubGraph) LinkMemoryEntity(context.Context, string, string, string) error { return nil }
func (s *stubGraph) LinkMemoryTopic(context.Context, string, string, string) error  { return nil }

func (s *stubGraph) LinkRelated(context.Context, string, string, string, float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related++
	return nil
}

func (s *stubGraph) GetSessionIngestMeta(_ context.Context, namespace, sessionID string) (*models.IngestMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaLookups++
	if s.metaErr != nil {
		return nil, s.metaErr
	}
	m, ok := s.meta[namespace+"/"+sessionID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *stubGraph) SetSessionIngestMeta(_ context.Context, namespace, sessionID string, meta models.IngestMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.meta[namespace+"/"+sessionID] = meta
	return nil
}

func testConfig() Config {
	return Config{
		ImportanceThreshold:    0.3,
		MinSemanticScore:       0.55,
		DedupeScore:            0.92,
		RelatedTopK:            3,
		MaxMemoriesPerUpdate:   10,
		SensitiveFilterEnabled: true,
		EmbedConcurrency:       2,
	}
}

func newTestUpdater(cfg Config, emb *stubEmbedder, vec *stubVectors, g *stubGraph) *Updater {
	return New(cfg,
		analysis.NewAnalyzer(),
		sensitive.NewFilter("test-1", nil, nil),
		emb, vec, g,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func rememberRequest(session string) *models.UpdateMemoryIndexRequest {
	return &models.UpdateMemoryIndexRequest{
		SessionID: session,
		Messages: []models.Message{
			{Role: "user", Content: "Remember this: the payments service owns invoice numbering."},
			{Role: "assistant", Content: "Understood, invoice numbering stays in payments."},
		},
	}
}

func TestUpdateIdempotency(t *testing.T) {
	emb := &stubEmbedder{}
	vec := &stubVectors{}
	g := newStubGraph()
	u := newTestUpdater(testConfig(), emb, vec, g)

	req := rememberRequest("sess-idem")

	first := u.Update(context.Background(), req)
	if first.Status != models.StatusProcessed {
		t.Fatalf("first delivery: status = %s (%s)", first.Status, first.Error)
	}
	if first.MemoriesAdded == 0 {
		t.Fatal("first delivery should persist at least one memory")
	}

	embedsAfterFirst := emb.calls
	second := u.Update(context.Background(), req)
	if second.Status != models.StatusSkipped {
		t.Fatalf("identical redelivery: status = %s, want skipped", second.Status)
	}
	if second.MemoriesAdded != 0 {
		t.Errorf("skipped update reported %d memories added", second.MemoriesAdded)
	}
	if emb.calls != embedsAfterFirst {
		t.Error("skipped update must not perform embedder work")
	}
	if g.metaLookups < 2 {
		t.Errorf("metadata lookup invoked %d times, want at least 2", g.metaLookups)
	}
}

func TestUpdateDeduplication(t *testing.T) {
	emb := &stubEmbedder{}
	vec := &stubVectors{}
	g := newStubGraph()
	u := newTestUpdater(testConfig(), emb, vec, g)

	first := u.Update(context.Background(), rememberRequest("sess-dedup-a"))
	if first.Status != models.StatusProcessed || first.MemoriesAdded == 0 {
		t.Fatalf("seed update failed: %+v", first)
	}
	persisted := len(vec.upserted)

	// The index now answers every search with a near-identical existing
	// memory; a second session's equivalent draft must dedupe, not persist.
	vec.matches = []vectorstore.Match{{ID: vec.upserted[0].ID, Score: 0.97}}

	second := u.Update(context.Background(), rememberRequest("sess-dedup-b"))
	if second.Status != models.StatusProcessed {
		t.Fatalf("second update: status = %s (%s)", second.Status, second.Error)
	}
	if second.MemoriesAdded != 0 {
		t.Errorf("duplicate drafts persisted: %d added", second.MemoriesAdded)
	}
	if second.MemoriesFiltered == 0 {
		t.Error("duplicates must count toward memories_filtered")
	}
	if len(vec.upserted) != persisted {
		t.Errorf("vector store grew from %d to %d entries on duplicate input", persisted, len(vec.upserted))
	}
}

func TestUpdateSensitiveScreening(t *testing.T) {
	emb := &stubEmbedder{}
	vec := &stubVectors{}
	g := newStubGraph()
	u := newTestUpdater(testConfig(), emb, vec, g)

	resp := u.Update(context.Background(), &models.UpdateMemoryIndexRequest{
		SessionID: "sess-sensitive",
		Messages: []models.Message{
			{Role: "user", Content: "Remember this: api_key=sk_1234567890123456789012345 for the billing sandbox."},
		},
	})
	if resp.Status != models.StatusProcessed {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Error)
	}
	if resp.MemoriesAdded != 0 {
		t.Error("sensitive draft must not be persisted")
	}
	if resp.MemoriesFiltered == 0 {
		t.Error("sensitive drop must count toward memories_filtered")
	}
	// The dropped content never reaches the embedder.
	for _, text := range emb.seen {
		if text != "" {
			t.Fatalf("sensitive content was embedded: %q", text)
		}
	}
}

func TestUpdateMetaLookupFailureAborts(t *testing.T) {
	emb := &stubEmbedder{}
	vec := &stubVectors{}
	g := newStubGraph()
	g.metaErr = errors.New("graph down")
	u := newTestUpdater(testConfig(), emb, vec, g)

	resp := u.Update(context.Background(), rememberRequest("sess-meta-fail"))
	if resp.Status != models.StatusError {
		t.Fatalf("essential lookup failure must abort, got %s", resp.Status)
	}
	if emb.calls != 0 || len(vec.upserted) != 0 {
		t.Error("no store work may happen before the idempotency check completes")
	}
}

func TestUpdateCommitFailureStillProcessed(t *testing.T) {
	emb := &stubEmbedder{}
	vec := &stubVectors{}
	g := newStubGraph()
	g.commitErr = errors.New("write lost")
	u := newTestUpdater(testConfig(), emb, vec, g)

	resp := u.Update(context.Background(), rememberRequest("sess-commit-fail"))
	if resp.Status != models.StatusProcessed {
		t.Fatalf("best-effort commit failure must not fail the update, got %s (%s)", resp.Status, resp.Error)
	}
	if resp.MemoriesAdded == 0 {
		t.Error("counts must stay accurate when the commit fails")
	}
}

func TestUpdateAllWritesFailing(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("embedder down")}
	vec := &stubVectors{}
	g := newStubGraph()
	u := newTestUpdater(testConfig(), emb, vec, g)

	resp := u.Update(context.Background(), rememberRequest("sess-all-fail"))
	if resp.Status != models.StatusError {
		t.Fatalf("when every memory fails the update is an error, got %s", resp.Status)
	}
}

func TestUpdateValidation(t *testing.T) {
	u := newTestUpdater(testConfig(), &stubEmbedder{}, &stubVectors{}, newStubGraph())

	resp := u.Update(context.Background(), &models.UpdateMemoryIndexRequest{SessionID: ""})
	if resp.Status != models.StatusError {
		t.Errorf("missing session_id: status = %s", resp.Status)
	}
	resp = u.Update(context.Background(), &models.UpdateMemoryIndexRequest{SessionID: "x"})
	if resp.Status != models.StatusError {
		t.Errorf("empty messages: status = %s", resp.Status)
	}
}

func TestDeterministicIDs(t *testing.T) {
	msgs := []models.Message{{Role: "user", Content: "hello"}}
	if TranscriptHash(msgs) != TranscriptHash(msgs) {
		t.Error("transcript hash must be deterministic")
	}
	a := MemoryID("ns", "s1", "abc")
	b := MemoryID("ns", "s1", "abc")
	if a != b {
		t.Error("memory id must be deterministic")
	}
	if a == MemoryID("ns", "s2", "abc") {
		t.Error("memory id must vary with session scope")
	}
}
