package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/vector"
)

type fakeEmbedder struct {
	calls   int
	failOn  map[string]bool // fail when the text contains this key
	failAll bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failAll {
		return nil, errors.New("embedding api down")
	}
	for key := range f.failOn {
		if strings.Contains(text, key) {
			return nil, errors.New("embedding api down")
		}
	}
	return []float32{1, 0, 0}, nil
}

type fakeIndex struct {
	docs       map[string]string
	deleteAlls int
	hits       []vector.Hit
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[string]string{}}
}

func (f *fakeIndex) Upsert(_ context.Context, id, content string, _ []float32, _ map[string]string) error {
	f.docs[id] = content
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) []vector.Hit {
	if len(f.hits) > topK {
		return f.hits[:topK]
	}
	return f.hits
}

func (f *fakeIndex) DeleteAll(_ context.Context) error {
	f.deleteAlls++
	f.docs = map[string]string{}
	return nil
}

func (f *fakeIndex) Count() int { return len(f.docs) }

func writeKnowledge(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPackChunksParagraphPacking(t *testing.T) {
	text := "first paragraph.\n\nsecond paragraph.\n\nthird paragraph."
	chunks := packChunks(text, 1000)
	require.Len(t, chunks, 1)
	require.Equal(t, "first paragraph.\n\nsecond paragraph.\n\nthird paragraph.", chunks[0])
}

func TestPackChunksRespectsLimit(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 10; i++ {
		paragraphs = append(paragraphs, strings.Repeat(fmt.Sprintf("p%d ", i), 100)) // ~300 chars each
	}
	chunks := packChunks(strings.Join(paragraphs, "\n\n"), 1000)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 1000)
		// Paragraph boundaries survive packing.
		require.NotContains(t, c, "\n\n\n")
	}
}

func TestPackChunksOversizedParagraphKeptWhole(t *testing.T) {
	big := strings.Repeat("x", 1500)
	text := "small.\n\n" + big + "\n\nalso small."
	chunks := packChunks(text, 1000)

	require.Len(t, chunks, 3)
	require.Equal(t, big, chunks[1])
}

func TestPackChunksSkipsBlankParagraphs(t *testing.T) {
	chunks := packChunks("a\n\n\n\n   \n\nb", 1000)
	require.Len(t, chunks, 1)
	require.Equal(t, "a\n\nb", chunks[0])
}

func TestIndexContextBuildsPositionalIDs(t *testing.T) {
	path := writeKnowledge(t, strings.Repeat("alpha ", 300)+"\n\n"+strings.Repeat("beta ", 300))
	emb := &fakeEmbedder{}
	idx := newFakeIndex()
	indexer := NewContextIndexer(emb, idx, path, 1000, zap.NewNop())

	require.NoError(t, indexer.IndexContext(context.Background(), false))
	require.True(t, indexer.Initialized())
	require.Contains(t, idx.docs, "context-0")
	require.Contains(t, idx.docs, "context-1")
}

func TestIndexContextIdempotentWhenNotForced(t *testing.T) {
	path := writeKnowledge(t, "the marketplace handles crew placement.\n\nsuppliers list products.")
	emb := &fakeEmbedder{}
	idx := newFakeIndex()
	indexer := NewContextIndexer(emb, idx, path, 1000, zap.NewNop())

	require.NoError(t, indexer.IndexContext(context.Background(), false))
	embedsAfterFirst := emb.calls
	require.Greater(t, embedsAfterFirst, 0)

	// Second non-forced call performs zero additional embedding calls.
	require.NoError(t, indexer.IndexContext(context.Background(), false))
	require.Equal(t, embedsAfterFirst, emb.calls)
}

func TestIndexContextForceClearsFirst(t *testing.T) {
	path := writeKnowledge(t, "some knowledge.")
	emb := &fakeEmbedder{}
	idx := newFakeIndex()
	indexer := NewContextIndexer(emb, idx, path, 1000, zap.NewNop())

	require.NoError(t, indexer.IndexContext(context.Background(), false))
	require.Equal(t, 0, idx.deleteAlls)

	require.NoError(t, indexer.IndexContext(context.Background(), true))
	require.Equal(t, 1, idx.deleteAlls)
	require.Contains(t, idx.docs, "context-0")
}

func TestIndexContextSkipsFailedChunks(t *testing.T) {
	path := writeKnowledge(t, "good paragraph one.\n\n"+strings.Repeat("bad ", 300)+"\n\ngood paragraph two.")
	emb := &fakeEmbedder{failOn: map[string]bool{"bad": true}}
	idx := newFakeIndex()
	indexer := NewContextIndexer(emb, idx, path, 1000, zap.NewNop())

	// A failing chunk is skipped, not fatal; the partial corpus survives.
	require.NoError(t, indexer.IndexContext(context.Background(), false))
	require.True(t, indexer.Initialized())
	require.NotContains(t, idx.docs, "context-1")
	require.Contains(t, idx.docs, "context-0")
	require.Contains(t, idx.docs, "context-2")
}

func TestIndexContextMissingSource(t *testing.T) {
	indexer := NewContextIndexer(&fakeEmbedder{}, newFakeIndex(), "/nonexistent/knowledge.md", 1000, zap.NewNop())
	err := indexer.IndexContext(context.Background(), false)
	require.Error(t, err)
	require.False(t, indexer.Initialized())
}
