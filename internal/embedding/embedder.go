package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"ragchat/internal/domain"
)

// Embedder converts texts into vectors, one per input and in input order.
// All vectors produced by one Embedder share a dimension.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Errorf builds an error wrapping domain.ErrEmbeddingService.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrEmbeddingService, fmt.Sprintf(format, args...))
}

// Wrap tags err as an embedding failure of op, keeping the cause inspectable.
func Wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingService, op, err)
}

// Check validates a backend response against its request.
func Check(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return Errorf("got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return Errorf("empty embedding for input %d", i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return Errorf("inconsistent embedding dimension: %d and %d", dim, len(v))
		}
	}
	return nil
}

// Batched splits large inputs into requests of at most Size texts.
type Batched struct {
	Embedder
	Size int
}

func (b Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if b.Size <= 0 || len(texts) <= b.Size {
		return b.Embedder.Embed(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.Size {
		end := min(start+b.Size, len(texts))
		vecs, err := b.Embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// RateLimited waits on a token bucket before every request.
type RateLimited struct {
	Embedder
	Limiter *rate.Limiter
}

// NewRateLimited allows perSecond requests per second with the given burst.
// A non-positive rate disables limiting.
func NewRateLimited(e Embedder, perSecond float64, burst int) Embedder {
	if perSecond <= 0 {
		return e
	}
	if burst < 1 {
		burst = 1
	}
	return RateLimited{Embedder: e, Limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return nil, Wrap("rate limiter", err)
	}
	return r.Embedder.Embed(ctx, texts)
}
