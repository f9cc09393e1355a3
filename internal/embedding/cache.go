package embedding

import (
	"context"
	"fmt"

	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/store"
)

// CachedEmbedder wraps a provider with content-hash caching via SQLite.
// Repeated ingestion of similar transcripts hits the cache instead of the
// embedding service.
type CachedEmbedder struct {
	provider Embedder
	cache    *store.EmbeddingCacheStore
	model    string
	dim      int
}

func NewCachedEmbedder(provider Embedder, cache *store.EmbeddingCacheStore, model string, dim int) *CachedEmbedder {
	return &CachedEmbedder{
		provider: provider,
		cache:    cache,
		model:    model,
		dim:      dim,
	}
}

// Embed returns the embedding for text, using cache when available.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)

	entry, err := e.cache.Get(hash, e.model)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil && entry.Dimension == e.dim {
		return BytesToFloat32(entry.Embedding), nil
	}

	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// A cache write failure costs a future cache hit, nothing else.
	_ = e.cache.Put(&models.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   Float32ToBytes(vec),
		Dimension:   e.dim,
		Model:       e.model,
	})

	return vec, nil
}
