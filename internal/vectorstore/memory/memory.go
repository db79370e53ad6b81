package memory

import (
	"context"
	"sync"

	"runrag/internal/domain"
	"runrag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []vectorstore.Candidate
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Upsert(_ context.Context, docs []domain.StoredDocument, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return vectorstore.ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return vectorstore.ErrDimensionMismatch
		}
	}
	s.dimension = dim
	for i := range docs {
		s.entries = append(s.entries, vectorstore.Candidate{Doc: docs[i], Vector: vectors[i]})
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int, f vectorstore.Filter) ([]domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.Rank(s.entries, vector, topK, f), nil
}

func (s *Storage) All(_ context.Context) ([]domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StoredDocument, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Doc
	}
	return out, nil
}

func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return nil }
