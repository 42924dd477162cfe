// Package chromem adapts a chromem-go collection to vectorstore.Storage.
// With an empty Path the collection lives in memory; otherwise it is
// persisted under Path and reloaded on the next run.
package chromem

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/philippgille/chromem-go"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

type Config struct {
	Path       string
	Collection string
	Compress   bool
}

type Storage struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu        sync.Mutex
	dimension int
	seqGen    atomic.Int64
}

func NewStorage(cfg Config) (*Storage, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, vectorstore.Wrap("open "+cfg.Path, err)
		}
	}
	name := cfg.Collection
	if name == "" {
		name = "ragchat"
	}
	collection, err := db.GetOrCreateCollection(name, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, vectorstore.Wrap("open collection "+name, err)
	}
	s := &Storage{db: db, collection: collection}
	s.seqGen.Store(time.Now().UnixNano())
	return s, nil
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
		if _, err := s.collection.GetByID(ctx, seg.Fingerprint); err == nil {
			continue
		}
		doc := chromem.Document{
			ID:        seg.Fingerprint,
			Embedding: append([]float32(nil), vectors[i]...),
			Content:   seg.Text,
			Metadata: map[string]string{
				"source": seg.Source,
				"offset": strconv.Itoa(seg.Offset),
				"index":  strconv.Itoa(seg.Index),
				"seq":    strconv.FormatInt(s.seqGen.Add(1), 10),
			},
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return stored, vectorstore.Wrap("add document", err)
		}
		stored++
	}
	s.dimension = dim
	return stored, nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	n := s.collection.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if len(vector) == 0 {
		return nil, vectorstore.Wrap("query", errors.New("empty query vector"))
	}
	// chromem rejects nResults above the collection size, and its ordering of
	// equal similarities is unspecified, so fetch everything that can tie.
	results, err := s.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, vectorstore.Wrap("query", err)
	}
	candidates := make([]vectorstore.Ranked, 0, len(results))
	for _, r := range results {
		offset, _ := strconv.Atoi(r.Metadata["offset"])
		index, _ := strconv.Atoi(r.Metadata["index"])
		seq, _ := strconv.ParseInt(r.Metadata["seq"], 10, 64)
		candidates = append(candidates, vectorstore.Ranked{
			Match: domain.Match{
				Segment: domain.Segment{
					Fingerprint: r.ID,
					Source:      r.Metadata["source"],
					Offset:      offset,
					Index:       index,
					Text:        r.Content,
				},
				Distance: 1 - float64(r.Similarity),
			},
			Seq: seq,
		})
	}
	return vectorstore.TopK(candidates, k), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *Storage) Close() error { return nil }
