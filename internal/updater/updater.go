package updater

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recallhq/deepmemory/internal/analysis"
	"github.com/recallhq/deepmemory/internal/embedding"
	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/sensitive"
	"github.com/recallhq/deepmemory/internal/vectorstore"
)

// DefaultNamespace scopes requests that carry no explicit namespace.
const DefaultNamespace = "default"

// VectorIndex is the slice of the vector store the updater needs.
type VectorIndex interface {
	Search(ctx context.Context, namespace string, vector []float32, limit int, minScore float64) ([]vectorstore.Match, error)
	Upsert(ctx context.Context, points []vectorstore.Point) error
}

// Graph is the slice of the graph store the updater needs.
type Graph interface {
	UpsertSession(ctx context.Context, namespace, sessionID string) error
	UpsertEntity(ctx context.Context, namespace string, e models.ExtractedEntity) error
	UpsertTopic(ctx context.Context, namespace string, t models.ExtractedTopic) error
	UpsertEvent(ctx context.Context, namespace, sessionID, eventID string, e models.ExtractedEvent) error
	UpsertMemory(ctx context.Context, namespace, sessionID string, m models.Memory) error
	LinkMemoryEntity(ctx context.Context, namespace, memoryID, entityName string) error
	LinkMemoryTopic(ctx context.Context, namespace, memoryID, topicName string) error
	LinkRelated(ctx context.Context, namespace, memoryID, otherID string, score float64) error
	GetSessionIngestMeta(ctx context.Context, namespace, sessionID string) (*models.IngestMeta, error)
	SetSessionIngestMeta(ctx context.Context, namespace, sessionID string, meta models.IngestMeta) error
}

// Config holds the pipeline knobs, resolved once at construction.
type Config struct {
	ImportanceThreshold    float64
	MinSemanticScore       float64
	DedupeScore            float64
	RelatedTopK            int
	MaxMemoriesPerUpdate   int
	SensitiveFilterEnabled bool
	EmbedConcurrency       int
}

// Updater reconciles extracted transcript data against the vector and graph
// stores: idempotent re-ingestion, deduplication, relationship linking.
type Updater struct {
	cfg      Config
	analyzer *analysis.Analyzer
	filter   *sensitive.Filter
	embedder embedding.Embedder
	vectors  VectorIndex
	graph    Graph
	locks    *sessionLocks
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config, analyzer *analysis.Analyzer, filter *sensitive.Filter, embedder embedding.Embedder, vectors VectorIndex, graph Graph, logger *slog.Logger) *Updater {
	if cfg.EmbedConcurrency < 1 {
		cfg.EmbedConcurrency = 1
	}
	return &Updater{
		cfg:      cfg,
		analyzer: analyzer,
		filter:   filter,
		embedder: embedder,
		vectors:  vectors,
		graph:    graph,
		locks:    newSessionLocks(),
		logger:   logger,
		now:      time.Now,
	}
}

// Update runs the ingestion state machine for one transcript delivery.
// Callers always receive a structured response; partial failures show up in
// the counters, never as an error status, unless nothing could be produced.
func (u *Updater) Update(ctx context.Context, req *models.UpdateMemoryIndexRequest) models.UpdateMemoryIndexResponse {
	if req == nil || req.SessionID == "" {
		return errorResponse("session_id is required")
	}
	if len(req.Messages) == 0 {
		return errorResponse("messages must not be empty")
	}
	namespace := req.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	lock := u.locks.acquire(namespace + "/" + req.SessionID)
	defer lock.Unlock()

	// Step 1: hash and idempotency check. The lookup is essential; if it
	// fails nothing may mutate.
	hash := TranscriptHash(req.Messages)
	meta, err := u.graph.GetSessionIngestMeta(ctx, namespace, req.SessionID)
	if err != nil {
		return errorResponse("ingest metadata lookup: " + err.Error())
	}
	if meta != nil && meta.TranscriptHash == hash {
		return models.UpdateMemoryIndexResponse{Status: models.StatusSkipped}
	}

	// Step 2: analysis.
	out := u.analyzer.Analyze(analysis.Input{
		Messages:              req.Messages,
		MaxMemoriesPerSession: u.cfg.MaxMemoriesPerUpdate,
		ImportanceThreshold:   u.cfg.ImportanceThreshold,
	})
	filtered := out.Filtered

	// Step 3: sensitive screening. A dropped draft is never embedded or
	// persisted and its content never leaves this stage.
	drafts := out.Drafts
	if u.cfg.SensitiveFilterEnabled && u.filter != nil {
		kept := drafts[:0]
		for _, d := range drafts {
			res := u.filter.Detect(d.Content)
			if res.Sensitive {
				filtered++
				u.logger.Debug("draft dropped by sensitive filter",
					"session", req.SessionID,
					"reasons", res.Reasons,
					"ruleset", res.RulesetVersion,
				)
				continue
			}
			kept = append(kept, d)
		}
		drafts = kept
	}

	// Graph groundwork: session, entities, topics, events. Deterministic
	// keys make each merge repeatable; individual failures degrade the
	// graph, not the update.
	if err := u.graph.UpsertSession(ctx, namespace, req.SessionID); err != nil {
		return errorResponse("upsert session: " + err.Error())
	}
	for _, e := range out.Entities {
		if err := u.graph.UpsertEntity(ctx, namespace, e); err != nil {
			u.logger.Warn("upsert entity failed", "entity", e.Name, "error", err)
		}
	}
	for _, t := range out.Topics {
		if err := u.graph.UpsertTopic(ctx, namespace, t); err != nil {
			u.logger.Warn("upsert topic failed", "topic", t.Name, "error", err)
		}
	}
	for _, ev := range out.Events {
		if err := u.graph.UpsertEvent(ctx, namespace, req.SessionID, EventID(namespace, req.SessionID, ev), ev); err != nil {
			u.logger.Warn("upsert event failed", "type", ev.Type, "error", err)
		}
	}

	// Steps 4-5: per-draft dedup and persistence, bounded concurrency.
	var (
		mu       sync.Mutex
		added    int
		failures int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.EmbedConcurrency)

	for _, draft := range drafts {
		draft := draft
		g.Go(func() error {
			outcome := u.persistDraft(gCtx, namespace, req.SessionID, draft)
			mu.Lock()
			switch outcome {
			case outcomeAdded:
				added++
			case outcomeDuplicate:
				filtered++
			case outcomeFailed:
				filtered++
				failures++
			}
			mu.Unlock()
			return nil // per-memory failures never abort the batch
		})
	}
	_ = g.Wait()

	if len(drafts) > 0 && failures == len(drafts) {
		return models.UpdateMemoryIndexResponse{
			Status:           models.StatusError,
			MemoriesFiltered: filtered,
			Error:            "every memory write failed",
		}
	}

	// Step 6: best-effort metadata commit. Failure weakens idempotency for
	// the next delivery only; the update still reports accurate counts.
	commit := models.IngestMeta{TranscriptHash: hash, LastIngestedAt: u.now().Unix()}
	if err := u.graph.SetSessionIngestMeta(ctx, namespace, req.SessionID, commit); err != nil {
		u.logger.Warn("ingest metadata commit failed", "session", req.SessionID, "error", err)
	}

	return models.UpdateMemoryIndexResponse{
		Status:           models.StatusProcessed,
		MemoriesAdded:    added,
		MemoriesFiltered: filtered,
	}
}

type draftOutcome int

const (
	outcomeAdded draftOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

// persistDraft embeds one draft, checks it against existing memories, and on
// survival writes it to both stores plus its graph edges.
func (u *Updater) persistDraft(ctx context.Context, namespace, sessionID string, draft models.MemoryDraft) draftOutcome {
	vec, err := u.embedder.Embed(ctx, draft.Content)
	if err != nil {
		u.logger.Warn("embed draft failed", "session", sessionID, "error", err)
		return outcomeFailed
	}

	memID := MemoryID(namespace, sessionID, embedding.ContentHash(draft.Content))

	matches, err := u.vectors.Search(ctx, namespace, vec, u.cfg.RelatedTopK+1, u.cfg.MinSemanticScore)
	if err != nil {
		u.logger.Warn("dedup search failed", "session", sessionID, "error", err)
		return outcomeFailed
	}
	// A top match that is this draft's own deterministic identity means a
	// replay after a partial failure; repeat both writes rather than skip,
	// so the lagging store catches up.
	if len(matches) > 0 && matches[0].Score >= u.cfg.DedupeScore && matches[0].ID != memID {
		return outcomeDuplicate
	}

	mem := models.Memory{
		ID:         memID,
		Content:    draft.Content,
		Importance: draft.Importance,
		Entities:   draft.Entities,
		Topics:     draft.Topics,
		CreatedAt:  draft.CreatedAt,
	}

	point := vectorstore.Point{
		ID:     mem.ID,
		Vector: vec,
		Payload: map[string]any{
			"namespace":  namespace,
			"session_id": sessionID,
			"content":    mem.Content,
			"importance": mem.Importance,
			"created_at": mem.CreatedAt,
		},
	}
	if err := u.vectors.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		u.logger.Warn("vector upsert failed", "memory", mem.ID, "error", err)
		return outcomeFailed
	}

	if err := u.graph.UpsertMemory(ctx, namespace, sessionID, mem); err != nil {
		u.logger.Warn("graph upsert failed", "memory", mem.ID, "error", err)
		return outcomeFailed
	}

	// Edges are enrichment: a failed link degrades traversal, not the
	// memory itself.
	for _, name := range mem.Entities {
		if err := u.graph.LinkMemoryEntity(ctx, namespace, mem.ID, name); err != nil {
			u.logger.Warn("link entity failed", "memory", mem.ID, "entity", name, "error", err)
		}
	}
	for _, name := range mem.Topics {
		if err := u.graph.LinkMemoryTopic(ctx, namespace, mem.ID, name); err != nil {
			u.logger.Warn("link topic failed", "memory", mem.ID, "topic", name, "error", err)
		}
	}

	linked := 0
	for _, m := range matches {
		if linked >= u.cfg.RelatedTopK {
			break
		}
		if m.ID == mem.ID || m.Score < u.cfg.MinSemanticScore {
			continue
		}
		if err := u.graph.LinkRelated(ctx, namespace, mem.ID, m.ID, m.Score); err != nil {
			u.logger.Warn("link related failed", "memory", mem.ID, "other", m.ID, "error", err)
			continue
		}
		linked++
	}

	return outcomeAdded
}

func errorResponse(msg string) models.UpdateMemoryIndexResponse {
	return models.UpdateMemoryIndexResponse{
		Status: models.StatusError,
		Error:  msg,
	}
}
