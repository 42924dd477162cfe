package retriever

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/vectorstore"
)

// Retriever embeds a query and looks up its nearest stored segments.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
}

func New(embedder embedding.Embedder, store vectorstore.Storage) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve returns at most k matches for query, nearest first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, embedding.Errorf("expected one query embedding, got %d", len(vecs))
	}
	matches, err := r.store.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return matches, nil
}
