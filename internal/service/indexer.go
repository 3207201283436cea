package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/llm"
	"github.com/punchagency/ycc-assist/internal/vector"
)

// VectorIndex is the slice of the vector store the services depend on.
type VectorIndex interface {
	Upsert(ctx context.Context, id, content string, embedding []float32, metadata map[string]string) error
	Query(ctx context.Context, embedding []float32, topK int) []vector.Hit
	DeleteAll(ctx context.Context) error
	Count() int
}

// ContextIndexer keeps the vector index in sync with the static
// knowledge corpus. Chunk ids are positional (context-0, context-1, …),
// so a forced rebuild always clears the index first; merging with old
// chunks would leave stale ids behind forever.
type ContextIndexer struct {
	embedder      llm.Embedder
	index         VectorIndex
	knowledgePath string
	chunkSize     int
	logger        *zap.Logger

	mu          sync.Mutex
	initialized bool
}

// NewContextIndexer creates a new context indexer
func NewContextIndexer(embedder llm.Embedder, index VectorIndex, knowledgePath string, chunkSize int, logger *zap.Logger) *ContextIndexer {
	return &ContextIndexer{
		embedder:      embedder,
		index:         index,
		knowledgePath: knowledgePath,
		chunkSize:     chunkSize,
		logger:        logger,
	}
}

// IndexContext builds the context corpus. Repeated non-forced calls
// after the first successful build are no-ops; force clears the index
// and rebuilds from scratch.
func (s *ContextIndexer) IndexContext(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized && !force {
		return nil
	}

	raw, err := os.ReadFile(s.knowledgePath)
	if err != nil {
		return fmt.Errorf("read knowledge source: %w", err)
	}

	if force {
		if err := s.index.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clear context index: %w", err)
		}
	}

	chunks := packChunks(string(raw), s.chunkSize)
	indexed := 0
	for i, chunk := range chunks {
		id := fmt.Sprintf("context-%d", i)

		embedding, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			// A partial corpus beats no corpus; skip and keep going.
			s.logger.Warn("skipping chunk, embedding failed",
				zap.String("id", id), zap.Error(err))
			continue
		}
		if err := s.index.Upsert(ctx, id, chunk, embedding, map[string]string{
			"chunk": fmt.Sprintf("%d", i),
		}); err != nil {
			s.logger.Warn("skipping chunk, upsert failed",
				zap.String("id", id), zap.Error(err))
			continue
		}
		indexed++
	}

	s.initialized = true
	s.logger.Info("context index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("indexed", indexed),
		zap.Bool("forced", force))
	return nil
}

// Initialized reports whether a build has completed since startup.
func (s *ContextIndexer) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// packChunks splits text into chunks of at most limit characters, packing
// whole paragraphs together. A single paragraph longer than the limit is
// kept whole and exceeds it; splitting mid-paragraph would cut sentences
// that need to be retrieved together.
func packChunks(text string, limit int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() == 0 {
			current.WriteString(p)
			continue
		}
		if current.Len()+2+len(p) <= limit {
			current.WriteString("\n\n")
			current.WriteString(p)
			continue
		}
		chunks = append(chunks, current.String())
		current.Reset()
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
