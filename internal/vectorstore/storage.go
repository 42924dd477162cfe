package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"slices"
	"strconv"

	"ragchat/internal/domain"
)

// Storage persists segment vectors and supports similarity search.
//
// Upsert is idempotent per segment fingerprint: a fingerprint that is already
// stored is skipped. Query returns at most k matches ordered by ascending
// cosine distance, ties broken by insertion order.
type Storage interface {
	Upsert(ctx context.Context, segments []domain.Segment, vectors [][]float32) (stored int, err error)
	Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Fingerprint is the deduplication key of a segment: a digest of its source
// path and rune offset.
func Fingerprint(path string, offset int) string {
	h := sha256.Sum256([]byte(path + "#" + strconv.Itoa(offset)))
	return hex.EncodeToString(h[:])
}

// CosineDistance returns 1 - cos(a, b). Zero vectors and length mismatches are
// treated as maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Ranked is a match with the insertion sequence used as a tiebreak.
type Ranked struct {
	Match domain.Match
	Seq   int64
}

// TopK orders candidates by (distance, seq) and keeps the first k.
func TopK(candidates []Ranked, k int) []domain.Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	slices.SortStableFunc(candidates, func(a, b Ranked) int {
		switch {
		case a.Match.Distance < b.Match.Distance:
			return -1
		case a.Match.Distance > b.Match.Distance:
			return 1
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]domain.Match, k)
	for i := range out {
		out[i] = candidates[i].Match
	}
	return out
}

// CheckBatch validates that segments and vectors pair up with a common dimension.
// dim is the expected dimension, or 0 to accept the first vector's.
func CheckBatch(segments []domain.Segment, vectors [][]float32, dim int) (int, error) {
	if len(segments) != len(vectors) {
		return 0, errorf("segments and vectors length mismatch: %d != %d", len(segments), len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, errorf("empty vector for segment %s", segments[i].Fingerprint)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return 0, errorf("vector dimension mismatch: want %d, got %d", dim, len(v))
		}
	}
	return dim, nil
}
