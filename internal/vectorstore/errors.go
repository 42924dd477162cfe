package vectorstore

import (
	"fmt"

	"ragchat/internal/domain"
)

func errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrVectorStore, fmt.Sprintf(format, args...))
}

// Wrap tags err as a vector store failure of op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrVectorStore, op, err)
}
