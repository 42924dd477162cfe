// Package loader turns a knowledge-base directory into plain-text documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"ragchat/internal/domain"
)

// ErrUnsupported is returned by LoadFile for files no parser is registered for.
var ErrUnsupported = errors.New("unsupported file type")

// Parser extracts plain text from a single file.
type Parser interface {
	Parse(ctx context.Context, path string) (string, error)
}

// Loader walks a directory and parses every file whose extension has a
// registered parser. Files that fail to parse or contain no text are skipped
// and reported; they never abort the walk.
type Loader struct {
	parsers map[string]Parser
	log     zerolog.Logger
}

// New returns a loader with no parsers; only extensions bound with Register
// are loaded.
func New(log zerolog.Logger) *Loader {
	return &Loader{parsers: map[string]Parser{}, log: log.With().Str("component", "loader").Logger()}
}

// Register binds a parser to a file extension such as ".md".
func (l *Loader) Register(ext string, p Parser) {
	l.parsers[strings.ToLower(ext)] = p
}

// Extensions lists the registered extensions.
func (l *Loader) Extensions() []string {
	out := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		out = append(out, ext)
	}
	return out
}

// Supports reports whether path has a registered extension.
func (l *Loader) Supports(path string) bool {
	_, ok := l.parsers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load returns the documents under root in lexical path order, plus one Skip
// per excluded file. Only an unreadable root or a cancelled ctx is an error.
func (l *Loader) Load(ctx context.Context, root string) ([]domain.Document, []domain.Skip, error) {
	var (
		docs  []domain.Document
		skips []domain.Skip
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			l.log.Warn().Str("path", path).Err(err).Msg("unreadable entry skipped")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || !l.Supports(path) {
			return nil
		}
		doc, err := l.LoadFile(ctx, path)
		var skip domain.Skip
		switch {
		case errors.As(err, &skip):
			skips = append(skips, skip)
		case err != nil:
			return err
		default:
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", root, err)
	}
	return docs, skips, nil
}

// LoadFile parses one file. Excluded files are reported as a domain.Skip error
// and logged.
func (l *Loader) LoadFile(ctx context.Context, path string) (domain.Document, error) {
	p, ok := l.parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return domain.Document{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	text, err := p.Parse(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Document{}, ctxErr
		}
		l.log.Error().Str("path", path).Err(err).Msg("skipped document: parse failure")
		return domain.Document{Path: path, Status: domain.StatusFailed},
			domain.Skip{Path: path, Kind: domain.ErrParseFailure, Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		l.log.Warn().Str("path", path).Msg("skipped document: empty content")
		return domain.Document{Path: path, Status: domain.StatusEmpty},
			domain.Skip{Path: path, Kind: domain.ErrEmptyContent}
	}
	return domain.Document{Path: path, Text: text, Status: domain.StatusOK}, nil
}
