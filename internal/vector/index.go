package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const contextCollection = "knowledge_context"

// Hit is a single similarity-search result.
type Hit struct {
	ID      string
	Content string
	Score   float32
}

// Index wraps chromem-go with disk persistence for the knowledge corpus.
// All embeddings are computed by the caller; the index never calls an
// embedding API itself. Query failures degrade to empty results so a
// chat turn is never blocked on retrieval.
type Index struct {
	mu     sync.RWMutex
	db     *chromem.DB
	logger *zap.Logger
}

// NewIndex creates (or opens) the persistent vector index at dir.
func NewIndex(dir string, logger *zap.Logger) (*Index, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create vector index dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	return &Index{db: db, logger: logger}, nil
}

// NewMemoryIndex creates an in-memory index, used by tests.
func NewMemoryIndex(logger *zap.Logger) *Index {
	return &Index{db: chromem.NewDB(), logger: logger}
}

// externalEmbeddings guards against chromem ever trying to embed on its
// own; every document and query carries a precomputed vector.
func externalEmbeddings(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("vector index only accepts precomputed embeddings")
}

func (x *Index) collection() (*chromem.Collection, error) {
	return x.db.GetOrCreateCollection(contextCollection, nil, externalEmbeddings)
}

// Upsert stores (or overwrites) one chunk under a stable id.
func (x *Index) Upsert(ctx context.Context, id, content string, embedding []float32, metadata map[string]string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	col, err := x.collection()
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	})
}

// Query returns the nearest chunks to the given embedding, at most topK.
// On any failure it logs and returns an empty slice.
func (x *Index) Query(ctx context.Context, embedding []float32, topK int) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	col := x.db.GetCollection(contextCollection, externalEmbeddings)
	if col == nil {
		return nil
	}
	count := col.Count()
	if count == 0 {
		return nil
	}
	if topK > count {
		topK = count
	}

	var results []chromem.Result
	var err error
	// chromem rejects nResults > stored documents in edge cases despite
	// the Count check above; step down until a size is accepted.
	for k := topK; k > 0; k-- {
		results, err = col.QueryEmbedding(ctx, embedding, k, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		x.logger.Warn("vector query failed", zap.Error(err))
		return nil
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ID: r.ID, Content: r.Content, Score: r.Similarity})
	}
	return hits
}

// DeleteAll drops the whole context collection. Used only by a forced
// reindex; chunk ids are positional, so stale ids must never survive.
func (x *Index) DeleteAll(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.db.GetCollection(contextCollection, externalEmbeddings) == nil {
		return nil
	}
	return x.db.DeleteCollection(contextCollection)
}

// Count returns the number of stored chunks.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	col := x.db.GetCollection(contextCollection, externalEmbeddings)
	if col == nil {
		return 0
	}
	return col.Count()
}
