package memory

import (
	"context"
	"fmt"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Storage is an ephemeral in-process vector store using brute-force cosine distance.
// Its contents live as long as the process.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	segments  []domain.Segment
	index     map[string]int
}

func NewStorage() *Storage {
	return &Storage{index: make(map[string]int)}
}

func (s *Storage) Upsert(ctx context.Context, segments []domain.Segment, vectors [][]float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, err := vectorstore.CheckBatch(segments, vectors, s.dimension)
	if err != nil {
		return 0, err
	}
	stored := 0
	for i, seg := range segments {
		if _, ok := s.index[seg.Fingerprint]; ok {
			continue
		}
		s.index[seg.Fingerprint] = len(s.segments)
		s.segments = append(s.segments, seg)
		s.vectors = append(s.vectors, vectors[i])
		stored++
	}
	s.dimension = dim
	return stored, nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.segments) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, vectorstore.Wrap("query", fmt.Errorf("vector dimension %d, store holds %d", len(vector), s.dimension))
	}
	candidates := make([]vectorstore.Ranked, len(s.segments))
	for i := range s.segments {
		candidates[i] = vectorstore.Ranked{
			Match: domain.Match{Segment: s.segments[i], Distance: vectorstore.CosineDistance(vector, s.vectors[i])},
			Seq:   int64(i),
		}
	}
	return vectorstore.TopK(candidates, k), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments), nil
}

func (s *Storage) Close() error { return nil }
