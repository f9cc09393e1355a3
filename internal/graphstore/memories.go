package graphstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/recallhq/deepmemory/internal/models"
)

// Node identity in the graph is (namespace, name-or-id); MERGE keys never
// include mutable properties.

// UpsertSession merges a session node.
func (c *Neo4jClient) UpsertSession(ctx context.Context, namespace, sessionID string) error {
	_, err := c.run(ctx, statement{
		Statement: `MERGE (s:Session {namespace: $ns, id: $id})
ON CREATE SET s.createdAt = timestamp()`,
		Parameters: map[string]any{"ns": namespace, "id": sessionID},
	})
	return err
}

// UpsertEntity merges an entity node, accumulating nothing: frequency is
// overwritten with the latest observation.
func (c *Neo4jClient) UpsertEntity(ctx context.Context, namespace string, e models.ExtractedEntity) error {
	_, err := c.run(ctx, statement{
		Statement: `MERGE (n:Entity {namespace: $ns, name: $name})
SET n.type = $type, n.frequency = $freq`,
		Parameters: map[string]any{"ns": namespace, "name": e.Name, "type": string(e.Type), "freq": e.Frequency},
	})
	return err
}

// UpsertTopic merges a topic node.
func (c *Neo4jClient) UpsertTopic(ctx context.Context, namespace string, t models.ExtractedTopic) error {
	_, err := c.run(ctx, statement{
		Statement: `MERGE (n:Topic {namespace: $ns, name: $name})
SET n.frequency = $freq, n.importance = $importance`,
		Parameters: map[string]any{"ns": namespace, "name": t.Name, "freq": t.Frequency, "importance": t.Importance},
	})
	return err
}

// UpsertEvent merges an event node keyed by its deterministic id and links
// it to its session.
func (c *Neo4jClient) UpsertEvent(ctx context.Context, namespace, sessionID, eventID string, e models.ExtractedEvent) error {
	_, err := c.run(ctx, statement{
		Statement: `MERGE (ev:Event {namespace: $ns, id: $id})
SET ev.type = $type, ev.summary = $summary, ev.timestamp = $ts
WITH ev
MATCH (s:Session {namespace: $ns, id: $session})
MERGE (s)-[:OCCURRED]->(ev)`,
		Parameters: map[string]any{
			"ns": namespace, "id": eventID, "type": string(e.Type),
			"summary": e.Summary, "ts": e.Timestamp, "session": sessionID,
		},
	})
	return err
}

// UpsertMemory merges a memory node and its session edge.
func (c *Neo4jClient) UpsertMemory(ctx context.Context, namespace, sessionID string, m models.Memory) error {
	_, err := c.run(ctx, statement{
		Statement: `MERGE (mem:Memory {namespace: $ns, id: $id})
SET mem.content = $content, mem.importance = $importance, mem.createdAt = $createdAt
WITH mem
MATCH (s:Session {namespace: $ns, id: $session})
MERGE (s)-[:PRODUCED]->(mem)`,
		Parameters: map[string]any{
			"ns": namespace, "id": m.ID, "content": m.Content,
			"importance": m.Importance, "createdAt": m.CreatedAt, "session": sessionID,
		},
	})
	return err
}

// LinkMemoryEntity creates a MENTIONS edge from a memory to an entity.
func (c *Neo4jClient) LinkMemoryEntity(ctx context.Context, namespace, memoryID, entityName string) error {
	_, err := c.run(ctx, statement{
		Statement: `MATCH (mem:Memory {namespace: $ns, id: $id})
MATCH (e:Entity {namespace: $ns, name: $name})
MERGE (mem)-[:MENTIONS]->(e)`,
		Parameters: map[string]any{"ns": namespace, "id": memoryID, "name": entityName},
	})
	return err
}

// LinkMemoryTopic creates an ABOUT edge from a memory to a topic.
func (c *Neo4jClient) LinkMemoryTopic(ctx context.Context, namespace, memoryID, topicName string) error {
	_, err := c.run(ctx, statement{
		Statement: `MATCH (mem:Memory {namespace: $ns, id: $id})
MATCH (t:Topic {namespace: $ns, name: $name})
MERGE (mem)-[:ABOUT]->(t)`,
		Parameters: map[string]any{"ns": namespace, "id": memoryID, "name": topicName},
	})
	return err
}

// LinkRelated creates an undirected-by-convention RELATED edge carrying the
// vector similarity that justified it.
func (c *Neo4jClient) LinkRelated(ctx context.Context, namespace, memoryID, otherID string, score float64) error {
	_, err := c.run(ctx, statement{
		Statement: `MATCH (a:Memory {namespace: $ns, id: $a})
MATCH (b:Memory {namespace: $ns, id: $b})
MERGE (a)-[r:RELATED]->(b)
SET r.score = $score`,
		Parameters: map[string]any{"ns": namespace, "a": memoryID, "b": otherID, "score": score},
	})
	return err
}

// GetSessionIngestMeta fetches the last processed transcript hash for a
// session, or nil when the session has never been ingested.
func (c *Neo4jClient) GetSessionIngestMeta(ctx context.Context, namespace, sessionID string) (*models.IngestMeta, error) {
	resp, err := c.run(ctx, statement{
		Statement: `MATCH (s:Session {namespace: $ns, id: $id})
RETURN s.transcriptHash, s.lastIngestedAt`,
		Parameters: map[string]any{"ns": namespace, "id": sessionID},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 || len(resp.Results[0].Data) == 0 {
		return nil, nil
	}
	row := resp.Results[0].Data[0].Row
	if len(row) < 2 {
		return nil, fmt.Errorf("unexpected ingest meta row shape")
	}

	var meta models.IngestMeta
	// Either column may be null for a session created before its first
	// successful metadata commit.
	_ = json.Unmarshal(row[0], &meta.TranscriptHash)
	_ = json.Unmarshal(row[1], &meta.LastIngestedAt)
	if meta.TranscriptHash == "" {
		return nil, nil
	}
	return &meta, nil
}

// SetSessionIngestMeta overwrites the session's ingest metadata.
func (c *Neo4jClient) SetSessionIngestMeta(ctx context.Context, namespace, sessionID string, meta models.IngestMeta) error {
	_, err := c.run(ctx, statement{
		Statement: `MERGE (s:Session {namespace: $ns, id: $id})
SET s.transcriptHash = $hash, s.lastIngestedAt = $at`,
		Parameters: map[string]any{
			"ns": namespace, "id": sessionID,
			"hash": meta.TranscriptHash, "at": meta.LastIngestedAt,
		},
	})
	return err
}

// GetMemories fetches memory nodes by id. Missing ids are silently absent
// from the result.
func (c *Neo4jClient) GetMemories(ctx context.Context, namespace string, ids []string) ([]models.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.run(ctx, statement{
		Statement: `MATCH (m:Memory {namespace: $ns})
WHERE m.id IN $ids
RETURN m.id, m.content, m.importance, m.createdAt`,
		Parameters: map[string]any{"ns": namespace, "ids": ids},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	var memories []models.Memory
	for _, d := range resp.Results[0].Data {
		if len(d.Row) < 4 {
			continue
		}
		var m models.Memory
		if json.Unmarshal(d.Row[0], &m.ID) != nil {
			continue
		}
		_ = json.Unmarshal(d.Row[1], &m.Content)
		_ = json.Unmarshal(d.Row[2], &m.Importance)
		_ = json.Unmarshal(d.Row[3], &m.CreatedAt)
		memories = append(memories, m)
	}
	return memories, nil
}

// Neighborhood returns, for a set of memory ids, the related memory ids and
// relation scores plus the entity and topic names each memory touches. Used
// by retrieval composition.
type Neighborhood struct {
	Related  map[string]float64 // memory id -> best relation score
	Entities []models.ExtractedEntity
	Topics   []models.ExtractedTopic
}

func (c *Neo4jClient) GetNeighborhood(ctx context.Context, namespace string, memoryIDs []string) (*Neighborhood, error) {
	nb := &Neighborhood{Related: make(map[string]float64)}
	if len(memoryIDs) == 0 {
		return nb, nil
	}

	resp, err := c.run(ctx,
		statement{
			Statement: `MATCH (m:Memory {namespace: $ns})-[r:RELATED]-(other:Memory)
WHERE m.id IN $ids
RETURN other.id, max(r.score)`,
			Parameters: map[string]any{"ns": namespace, "ids": memoryIDs},
		},
		statement{
			Statement: `MATCH (m:Memory {namespace: $ns})-[:MENTIONS]->(e:Entity)
WHERE m.id IN $ids
RETURN DISTINCT e.name, e.type, e.frequency`,
			Parameters: map[string]any{"ns": namespace, "ids": memoryIDs},
		},
		statement{
			Statement: `MATCH (m:Memory {namespace: $ns})-[:ABOUT]->(t:Topic)
WHERE m.id IN $ids
RETURN DISTINCT t.name, t.frequency, t.importance`,
			Parameters: map[string]any{"ns": namespace, "ids": memoryIDs},
		},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) < 3 {
		return nil, fmt.Errorf("unexpected neighborhood response shape")
	}

	for _, d := range resp.Results[0].Data {
		if len(d.Row) < 2 {
			continue
		}
		var id string
		var score float64
		if json.Unmarshal(d.Row[0], &id) == nil && json.Unmarshal(d.Row[1], &score) == nil {
			nb.Related[id] = score
		}
	}
	for _, d := range resp.Results[1].Data {
		if len(d.Row) < 3 {
			continue
		}
		var e models.ExtractedEntity
		var eType string
		if json.Unmarshal(d.Row[0], &e.Name) == nil &&
			json.Unmarshal(d.Row[1], &eType) == nil &&
			json.Unmarshal(d.Row[2], &e.Frequency) == nil {
			e.Type = models.EntityType(eType)
			nb.Entities = append(nb.Entities, e)
		}
	}
	for _, d := range resp.Results[2].Data {
		if len(d.Row) < 3 {
			continue
		}
		var t models.ExtractedTopic
		if json.Unmarshal(d.Row[0], &t.Name) == nil &&
			json.Unmarshal(d.Row[1], &t.Frequency) == nil &&
			json.Unmarshal(d.Row[2], &t.Importance) == nil {
			nb.Topics = append(nb.Topics, t)
		}
	}
	return nb, nil
}
