package loader

import (
	"context"
	"errors"
	"os"
	"unicode/utf8"
)

// TextParser reads a file as UTF-8 text.
type TextParser struct{}

func (TextParser) Parse(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.New("not valid UTF-8")
	}
	return string(data), nil
}
