// Package logger provides structured logging for ragchat
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragchat/internal/domain"
)

// Logger wraps zerolog with ragchat-specific helpers
type Logger struct {
	zlog zerolog.Logger
	file *os.File
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console format instead of JSON
	File       string // append to this file; empty writes to Output
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger. When cfg.File is set the file is
// created if needed and must be released with Close.
func NewLogger(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	l := &Logger{}
	output := cfg.Output
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		output = f
	}
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.File != "",
		}
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "ragchat").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	l.zlog = zlog
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Component returns a sub-logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// LogIngest logs the outcome of one ingestion run.
func (l *Logger) LogIngest(report domain.IngestReport, duration time.Duration, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Str("component", "ingest").
		Int("documents", report.Documents).
		Int("skipped", len(report.Skipped)).
		Int("segments", report.Segments).
		Int("stored", report.Stored).
		Dur("duration_ms", duration).
		Msg("ingestion finished")
}

// LogQuestion logs one answered, failed or cancelled question.
func (l *Logger) LogQuestion(question string, matches int, duration time.Duration, outcome string, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Str("component", "session").
		Str("question", question).
		Int("context_segments", matches).
		Str("outcome", outcome).
		Dur("duration_ms", duration).
		Msg("question finished")
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// InitGlobalLogger points zerolog's global logger at l.
func InitGlobalLogger(l *Logger) {
	log.Logger = l.zlog
}
