package service

import (
	"context"

	"github.com/punchagency/ycc-assist/internal/domain"
	"github.com/punchagency/ycc-assist/internal/repository"
)

// AdminService handles admin operations
type AdminService struct {
	indexer *ContextIndexer
	index   VectorIndex
	history *repository.HistoryRepository
}

// NewAdminService creates a new admin service
func NewAdminService(indexer *ContextIndexer, index VectorIndex, history *repository.HistoryRepository) *AdminService {
	return &AdminService{
		indexer: indexer,
		index:   index,
		history: history,
	}
}

// ReindexContext rebuilds the knowledge corpus. force clears the index
// first and re-embeds every chunk.
func (s *AdminService) ReindexContext(ctx context.Context, force bool) error {
	return s.indexer.IndexContext(ctx, force)
}

// Stats returns service counters
func (s *AdminService) Stats(ctx context.Context) (*domain.Stats, error) {
	sessions, err := s.history.CountSessions(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.history.CountMessages(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Stats{
		ContextChunks: s.index.Count(),
		TotalSessions: sessions,
		TotalMessages: messages,
	}, nil
}
