package models

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityOrganization EntityType = "organization"
	EntityProject      EntityType = "project"
	EntityConcept      EntityType = "concept"
	EntityOther        EntityType = "other"
)

// EventType classifies a milestone inferred from a transcript.
type EventType string

const (
	EventRequirementConfirmed  EventType = "requirement_confirmed"
	EventDesignDecided         EventType = "design_decided"
	EventImplementationStarted EventType = "implementation_started"
	EventIssueResolved         EventType = "issue_resolved"
	EventMilestoneReached      EventType = "milestone_reached"
	EventOther                 EventType = "other"
)

// Message is one turn of a conversation transcript. Content is opaque text;
// any script or language is accepted.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractedEntity is a named thing observed in the analyzed transcript
// window. Frequency counts occurrences within that window; entities are
// deduplicated by normalized name within one analysis pass.
type ExtractedEntity struct {
	Name      string     `json:"name"`
	Type      EntityType `json:"type"`
	Frequency int        `json:"frequency"`
}

// ExtractedTopic is a recurring subject. Importance here is a topic-level
// salience signal, distinct from memory importance.
type ExtractedTopic struct {
	Name       string  `json:"name"`
	Frequency  int     `json:"frequency"`
	Importance float64 `json:"importance"`
}

// ExtractedEvent is a discrete milestone inferred from the transcript.
type ExtractedEvent struct {
	Type      EventType `json:"type"`
	Summary   string    `json:"summary"`
	Timestamp int64     `json:"timestamp"`
}

// Signals are the raw inputs to importance scoring.
type Signals struct {
	Frequency  float64 `json:"frequency"`
	Novelty    float64 `json:"novelty"`
	UserIntent float64 `json:"userIntent"`
	Length     float64 `json:"length"`
}

// MemoryDraft is a transient candidate memory produced by the analyzer and
// consumed by the updater. Never persisted as-is.
type MemoryDraft struct {
	Content    string   `json:"content"`
	Entities   []string `json:"entities"`
	Topics     []string `json:"topics"`
	CreatedAt  int64    `json:"createdAt"`
	Importance float64  `json:"importance"`
	Signals    Signals  `json:"signals"`
}

// Memory is the durable, addressable output of the pipeline. The vector
// store additionally holds its embedding; the graph store holds its edges.
type Memory struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Importance float64  `json:"importance"`
	Entities   []string `json:"entities"`
	Topics     []string `json:"topics"`
	CreatedAt  int64    `json:"createdAt"`
}

// IngestMeta is the per-session record of the last processed transcript,
// stored in the graph store to make re-delivery idempotent.
type IngestMeta struct {
	TranscriptHash string `json:"transcriptHash"`
	LastIngestedAt int64  `json:"lastIngestedAt"`
}

// UpdateStatus is the outcome of one update call.
type UpdateStatus string

const (
	StatusProcessed UpdateStatus = "processed"
	StatusSkipped   UpdateStatus = "skipped"
	StatusError     UpdateStatus = "error"
)

// UpdateMemoryIndexRequest is the payload for POST /memory/update.
type UpdateMemoryIndexRequest struct {
	Namespace string    `json:"namespace,omitempty"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Async     bool      `json:"async,omitempty"`
}

// UpdateMemoryIndexResponse is returned from POST /memory/update.
type UpdateMemoryIndexResponse struct {
	Status           UpdateStatus `json:"status"`
	MemoriesAdded    int          `json:"memories_added"`
	MemoriesFiltered int          `json:"memories_filtered"`
	Error            string       `json:"error,omitempty"`
}

// RetrieveContextRequest is the payload for POST /memory/retrieve.
type RetrieveContextRequest struct {
	Namespace   string `json:"namespace,omitempty"`
	UserInput   string `json:"user_input"`
	SessionID   string `json:"session_id"`
	MaxMemories int    `json:"max_memories,omitempty"`
}

// RetrievedMemory is one ranked memory in a retrieval response.
type RetrievedMemory struct {
	ID            string   `json:"id"`
	Content       string   `json:"content"`
	Importance    float64  `json:"importance"`
	Relevance     float64  `json:"relevance"`
	SemanticScore float64  `json:"semantic_score,omitempty"`
	RelationScore float64  `json:"relation_score,omitempty"`
	Sources       []string `json:"sources"`
}

// RetrieveContextResponse is returned from POST /memory/retrieve.
type RetrieveContextResponse struct {
	Entities []ExtractedEntity `json:"entities"`
	Topics   []ExtractedTopic  `json:"topics"`
	Memories []RetrievedMemory `json:"memories"`
	Context  string            `json:"context"`
}

// EmbeddingCacheEntry is a cached embedding row in SQLite.
type EmbeddingCacheEntry struct {
	ContentHash string
	Embedding   []byte
	Dimension   int
	Model       string
	UpdatedAt   int64
}

// AuditEntry is one append-only audit log row. Memory content is never
// recorded here.
type AuditEntry struct {
	ID        int64  `json:"id"`
	RequestID string `json:"requestId"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Status    int    `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status   string       `json:"status"`
	Embedder ServiceCheck `json:"embedder"`
	Qdrant   ServiceCheck `json:"qdrant"`
	Graph    ServiceCheck `json:"graph"`
	DB       ServiceCheck `json:"db"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
