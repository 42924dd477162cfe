package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/memory"
)

// keywordEmbedder scores texts on two axes: "hours" and "fees".
type keywordEmbedder struct{ fail bool }

func (keywordEmbedder) Name() string { return "keyword" }

func (k keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if k.fail {
		return nil, embedding.Errorf("unreachable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{
			float32(strings.Count(t, "hours")) + 0.01,
			float32(strings.Count(t, "fees")) + 0.01,
		}
	}
	return out, nil
}

func seed(t *testing.T, store vectorstore.Storage, texts ...string) {
	t.Helper()
	segs := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segs[i] = domain.Segment{Fingerprint: vectorstore.Fingerprint("kb.pdf", i*10), Source: "kb.pdf", Offset: i * 10, Index: i, Text: text}
	}
	vecs, err := keywordEmbedder{}.Embed(context.Background(), texts)
	require.NoError(t, err)
	_, err = store.Upsert(context.Background(), segs, vecs)
	require.NoError(t, err)
}

func TestRetrieve_NearestFirst(t *testing.T) {
	store := memory.NewStorage()
	seed(t, store, "tuition fees are due in May", "library hours are 8 to 22", "parking fees")

	r := New(keywordEmbedder{}, store)
	got, err := r.Retrieve(context.Background(), "What are library hours?", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "library hours are 8 to 22", got[0].Segment.Text)
	assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
}

func TestRetrieve_Errors(t *testing.T) {
	store := memory.NewStorage()
	seed(t, store, "library hours")

	_, err := New(keywordEmbedder{fail: true}, store).Retrieve(context.Background(), "hours", 3)
	require.ErrorIs(t, err, domain.ErrEmbeddingService)

	got, err := New(keywordEmbedder{fail: true}, store).Retrieve(context.Background(), "hours", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
