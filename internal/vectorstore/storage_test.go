package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragchat/internal/domain"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("kb/a.pdf", 900), Fingerprint("kb/a.pdf", 900))
	assert.NotEqual(t, Fingerprint("kb/a.pdf", 900), Fingerprint("kb/a.pdf", 1800))
	assert.NotEqual(t, Fingerprint("kb/a.pdf", 0), Fingerprint("kb/b.pdf", 0))
	assert.Len(t, Fingerprint("x", 0), 64)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{3, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 2.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 2.0, CosineDistance([]float32{1}, []float32{1, 0}))
}

func TestTopK(t *testing.T) {
	mk := func(text string, d float64, seq int64) Ranked {
		return Ranked{Match: domain.Match{Segment: domain.Segment{Text: text}, Distance: d}, Seq: seq}
	}
	got := TopK([]Ranked{mk("c", 0.5, 1), mk("a", 0.1, 3), mk("b", 0.5, 0), mk("d", 0.9, 2)}, 3)
	assert.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Segment.Text)
	assert.Equal(t, "b", got[1].Segment.Text)
	assert.Equal(t, "c", got[2].Segment.Text)

	assert.Nil(t, TopK([]Ranked{mk("a", 0, 0)}, 0))
	assert.Len(t, TopK([]Ranked{mk("a", 0, 0)}, 10), 1)
}
