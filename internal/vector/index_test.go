package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUpsertQueryRoundTrip(t *testing.T) {
	idx := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	docs := []struct {
		id        string
		content   string
		embedding []float32
	}{
		{"context-0", "shipping and delivery policy", []float32{1, 0, 0}},
		{"context-1", "crew placement process", []float32{0, 1, 0}},
		{"context-2", "supplier onboarding", []float32{0, 0, 1}},
	}
	for _, d := range docs {
		require.NoError(t, idx.Upsert(ctx, d.id, d.content, d.embedding, map[string]string{"chunk": d.id}))
	}
	require.Equal(t, 3, idx.Count())

	hits := idx.Query(ctx, []float32{1, 0, 0}, 2)
	require.Len(t, hits, 2)
	require.Equal(t, "context-0", hits[0].ID)
	require.Equal(t, "shipping and delivery policy", hits[0].Content)
}

func TestUpsertOverwritesExistingID(t *testing.T) {
	idx := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "context-0", "old text", []float32{1, 0, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "context-0", "new text", []float32{1, 0, 0}, nil))
	require.Equal(t, 1, idx.Count())

	hits := idx.Query(ctx, []float32{1, 0, 0}, 1)
	require.Len(t, hits, 1)
	require.Equal(t, "new text", hits[0].Content)
}

func TestQueryStepsDownWhenTopKExceedsCorpus(t *testing.T) {
	idx := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "context-0", "only chunk", []float32{1, 0, 0}, nil))

	hits := idx.Query(ctx, []float32{1, 0, 0}, 3)
	require.Len(t, hits, 1)
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex(zap.NewNop())
	require.Empty(t, idx.Query(context.Background(), []float32{1, 0, 0}, 3))
}

func TestDeleteAllClearsCorpus(t *testing.T) {
	idx := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "context-0", "text", []float32{1, 0, 0}, nil))
	require.NoError(t, idx.DeleteAll(ctx))
	require.Equal(t, 0, idx.Count())
	require.Empty(t, idx.Query(ctx, []float32{1, 0, 0}, 3))
}

func TestDeleteAllOnEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex(zap.NewNop())
	require.NoError(t, idx.DeleteAll(context.Background()))
}
