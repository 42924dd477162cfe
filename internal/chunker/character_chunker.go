package chunker

import (
	"fmt"
	"iter"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// CharacterChunker splits text into fixed-size rune windows where each window
// starts overlap runes before the end of the previous one.
type CharacterChunker struct {
	maxChars int
	overlap  int
}

// NewCharacterChunker requires 0 <= overlap < maxChars.
func NewCharacterChunker(maxChars, overlap int) (*CharacterChunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max segment length must be positive, got %d", domain.ErrInvalidConfig, maxChars)
	}
	if overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidConfig, maxChars, overlap)
	}
	return &CharacterChunker{maxChars: maxChars, overlap: overlap}, nil
}

// MaxChars returns the maximum segment length in runes.
func (c *CharacterChunker) MaxChars() int { return c.maxChars }

// Overlap returns the number of runes shared by consecutive segments.
func (c *CharacterChunker) Overlap() int { return c.overlap }

// Segments lazily yields the segments of document in order.
// Empty text yields nothing; text no longer than maxChars yields one segment.
func (c *CharacterChunker) Segments(document domain.Document) iter.Seq[domain.Segment] {
	return func(yield func(domain.Segment) bool) {
		runes := []rune(document.Text)
		n := len(runes)
		if n == 0 {
			return
		}
		start, idx := 0, 0
		for {
			end := min(start+c.maxChars, n)
			seg := domain.Segment{
				Fingerprint: vectorstore.Fingerprint(document.Path, start),
				Source:      document.Path,
				Offset:      start,
				Index:       idx,
				Text:        string(runes[start:end]),
			}
			if !yield(seg) || end == n {
				return
			}
			start = end - c.overlap
			idx++
		}
	}
}

// Chunk collects every segment of document.
func (c *CharacterChunker) Chunk(document domain.Document) []domain.Segment {
	var segments []domain.Segment
	for seg := range c.Segments(document) {
		segments = append(segments, seg)
	}
	return segments
}
