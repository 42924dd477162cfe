package chat

import (
	"fmt"
	"sync"

	"ragchat/internal/domain"
)

// History is a bounded conversation window. Exchanges are committed as
// (user, assistant) pairs and the oldest pair is evicted first once the
// number of messages exceeds the bound.
type History struct {
	mu   sync.Mutex
	max  int
	msgs []domain.Message
}

// NewHistory bounds the window to max messages; one exchange needs two.
func NewHistory(max int) (*History, error) {
	if max < 2 {
		return nil, fmt.Errorf("%w: history must hold at least 2 messages, got %d", domain.ErrInvalidConfig, max)
	}
	return &History{max: max}, nil
}

// Append commits one completed exchange.
func (h *History) Append(user, assistant domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, user, assistant)
	for len(h.msgs) > h.max {
		h.msgs = h.msgs[2:]
	}
}

// Messages returns a copy of the window, oldest first.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Message(nil), h.msgs...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func (h *History) Max() int { return h.max }
