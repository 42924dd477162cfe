package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func reconstruct(segments []domain.Segment, overlap int) string {
	var sb strings.Builder
	for i, s := range segments {
		if i == 0 {
			sb.WriteString(s.Text)
			continue
		}
		sb.WriteString(string([]rune(s.Text)[overlap:]))
	}
	return sb.String()
}

func TestNewCharacterChunker_Validation(t *testing.T) {
	tests := []struct {
		name     string
		max, ovl int
		wantErr  bool
	}{
		{"valid", 1000, 100, false},
		{"zero overlap", 10, 0, false},
		{"overlap equals max", 10, 10, true},
		{"negative overlap", 10, -1, true},
		{"zero max", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCharacterChunker(tt.max, tt.ovl)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCharacterChunker_ThreeWindows(t *testing.T) {
	c, err := NewCharacterChunker(1000, 100)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 250)
	segs := c.Chunk(domain.Document{Path: "kb/a.pdf", Text: text})

	require.Len(t, segs, 3)
	wantBounds := [][2]int{{0, 1000}, {900, 1900}, {1800, 2500}}
	for i, b := range wantBounds {
		assert.Equal(t, b[0], segs[i].Offset)
		assert.Equal(t, i, segs[i].Index)
		assert.Equal(t, text[b[0]:b[1]], segs[i].Text)
		assert.Equal(t, "kb/a.pdf", segs[i].Source)
	}
}

func TestCharacterChunker_ShortTextIsSingleSegment(t *testing.T) {
	for _, n := range []int{1, 5, 10} {
		c, err := NewCharacterChunker(10, 3)
		require.NoError(t, err)
		text := strings.Repeat("x", n)
		segs := c.Chunk(domain.Document{Path: "p", Text: text})
		require.Len(t, segs, 1)
		assert.Equal(t, text, segs[0].Text)
	}
}

func TestCharacterChunker_RoundTrip(t *testing.T) {
	texts := []string{
		"a",
		"The library opens at nine.",
		strings.Repeat("lorem ipsum dolor sit amet ", 97),
		strings.Repeat("żółć ", 333),
	}
	params := [][2]int{{1, 0}, {7, 3}, {50, 0}, {64, 63}, {1000, 100}}
	for _, text := range texts {
		for _, p := range params {
			c, err := NewCharacterChunker(p[0], p[1])
			require.NoError(t, err)
			segs := c.Chunk(domain.Document{Path: "p", Text: text})
			require.NotEmpty(t, segs)
			assert.Equal(t, text, reconstruct(segs, p[1]), "L=%d O=%d", p[0], p[1])
			for i := 1; i < len(segs); i++ {
				prev := []rune(segs[i-1].Text)
				cur := []rune(segs[i].Text)
				assert.Equal(t, string(prev[len(prev)-p[1]:]), string(cur[:p[1]]))
				assert.LessOrEqual(t, len(cur), p[0])
			}
		}
	}
}

func TestCharacterChunker_Deterministic(t *testing.T) {
	c, err := NewCharacterChunker(40, 8)
	require.NoError(t, err)
	doc := domain.Document{Path: "kb/hours.pdf", Text: strings.Repeat("open late on fridays. ", 20)}
	assert.Equal(t, c.Chunk(doc), c.Chunk(doc))
}

func TestCharacterChunker_EmptyText(t *testing.T) {
	c, err := NewCharacterChunker(10, 2)
	require.NoError(t, err)
	assert.Empty(t, c.Chunk(domain.Document{Path: "p"}))
}

func TestCharacterChunker_LazyStop(t *testing.T) {
	c, err := NewCharacterChunker(2, 0)
	require.NoError(t, err)
	count := 0
	for range c.Segments(domain.Document{Path: "p", Text: strings.Repeat("x", 100)}) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestCharacterChunker_FingerprintsDifferByOffset(t *testing.T) {
	c, err := NewCharacterChunker(5, 1)
	require.NoError(t, err)
	segs := c.Chunk(domain.Document{Path: "p", Text: "0123456789abc"})
	seen := map[string]bool{}
	for _, s := range segs {
		assert.False(t, seen[s.Fingerprint])
		seen[s.Fingerprint] = true
	}
}
