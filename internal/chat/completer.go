// Package chat holds the conversation window and the streaming completion
// contract shared by the model backends.
package chat

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
)

// Request is one completion call: an optional system instruction, the prior
// conversation and the new user prompt.
type Request struct {
	System  string
	History []domain.Message
	Prompt  string
}

// Completer streams a completion. onPartial is called synchronously for every
// text fragment in arrival order; the returned string is the full answer.
// On error, fragments already delivered are not retracted.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request, onPartial func(string)) (string, error)
}

// Errorf builds an error wrapping domain.ErrChatCompletion.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrChatCompletion, fmt.Sprintf(format, args...))
}

// Wrap tags err as a completion failure of op, keeping the cause inspectable.
func Wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrChatCompletion, op, err)
}
