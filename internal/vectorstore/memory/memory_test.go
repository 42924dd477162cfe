package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

func seg(path string, offset int, text string) domain.Segment {
	return domain.Segment{Fingerprint: vectorstore.Fingerprint(path, offset), Source: path, Offset: offset, Text: text}
}

func TestStorage_QueryOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_, err := s.Upsert(ctx,
		[]domain.Segment{seg("a", 0, "x-axis"), seg("a", 10, "y-axis"), seg("a", 20, "diagonal")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	require.NoError(t, err)

	res, err := s.Query(ctx, []float32{1, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "x-axis", res[0].Segment.Text)
	assert.Equal(t, "diagonal", res[1].Segment.Text)
	assert.Equal(t, "y-axis", res[2].Segment.Text)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}
}

func TestStorage_QueryNeverExceedsK(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_, err := s.Upsert(ctx,
		[]domain.Segment{seg("a", 0, "1"), seg("a", 1, "2"), seg("a", 2, "3")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	require.NoError(t, err)

	for k := 0; k <= 5; k++ {
		res, err := s.Query(ctx, []float32{1, 1}, k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res), k)
	}
}

func TestStorage_TiesBrokenByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_, err := s.Upsert(ctx, []domain.Segment{seg("b", 0, "first")}, [][]float32{{2, 0}})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, []domain.Segment{seg("a", 0, "second"), seg("c", 0, "third")}, [][]float32{{1, 0}, {3, 0}})
	require.NoError(t, err)

	res, err := s.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{res[0].Segment.Text, res[1].Segment.Text, res[2].Segment.Text})
}

func TestStorage_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	segs := []domain.Segment{seg("a", 0, "one"), seg("a", 900, "two")}
	vecs := [][]float32{{1, 0}, {0, 1}}

	stored, err := s.Upsert(ctx, segs, vecs)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	stored, err = s.Upsert(ctx, segs, vecs)
	require.NoError(t, err)
	assert.Equal(t, 0, stored)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStorage_RejectsBadBatches(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	_, err := s.Upsert(ctx, []domain.Segment{seg("a", 0, "x")}, nil)
	require.ErrorIs(t, err, domain.ErrVectorStore)

	_, err = s.Upsert(ctx, []domain.Segment{seg("a", 0, "x"), seg("a", 1, "y")}, [][]float32{{1, 0}, {1, 0, 0}})
	require.ErrorIs(t, err, domain.ErrVectorStore)

	_, err = s.Upsert(ctx, []domain.Segment{seg("a", 0, "x")}, [][]float32{{1, 0}})
	require.NoError(t, err)
	_, err = s.Query(ctx, []float32{1, 0, 0}, 1)
	require.ErrorIs(t, err, domain.ErrVectorStore)
}

func TestStorage_EmptyQuery(t *testing.T) {
	res, err := NewStorage().Query(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}
