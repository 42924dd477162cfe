package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"ragchat/internal/chat"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Retriever finds stored segments relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Match, error)
}

type SessionConfig struct {
	KnowledgeBase string
	SystemPrompt  string
	TopK          int
	Ingester      *Ingester
	// Retriever is optional; without one questions go to the model as asked.
	Retriever Retriever
	Completer chat.Completer
	History   *chat.History
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// storeWeight is the capacity of the store semaphore. Retrieval holds one
// unit, ingestion holds all of them.
const storeWeight = 1 << 16

// Session is the conversation with the assistant. It answers one question at
// a time and serializes ingestion (writer) against retrieval (readers).
type Session struct {
	cfg    SessionConfig
	store  *semaphore.Weighted
	active atomic.Bool
	now    func() time.Time
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Session{cfg: cfg, store: semaphore.NewWeighted(storeWeight), now: time.Now}
}

// History returns the committed conversation, oldest first.
func (s *Session) History() []domain.Message { return s.cfg.History.Messages() }

// Initialize ingests the knowledge base and reports progress on the stream.
func (s *Session) Initialize(ctx context.Context) *Stream {
	stream, sctx := newStream(ctx)
	go func() {
		defer stream.finish()
		if ev, ok := s.initialize(sctx, stream); ok {
			stream.send(ev)
		}
	}()
	return stream
}

func (s *Session) initialize(ctx context.Context, stream *Stream) (domain.Event, bool) {
	if !stream.send(domain.Partial("Initiating...")) {
		return domain.Event{}, false
	}
	if s.cfg.Ingester != nil {
		stream.send(domain.Partial("\nLoading and chunking documents..."))
		progress := func(msg string) { stream.send(domain.Partial(msg)) }
		report, err := s.writeStore(ctx, func() (domain.IngestReport, error) {
			return s.cfg.Ingester.IngestDir(ctx, s.cfg.KnowledgeBase, progress)
		})
		if stream.cancelled() {
			return domain.Event{}, false
		}
		if err != nil {
			return domain.Failure(err), true
		}
		stream.send(domain.Partial(fmt.Sprintf(" (Ingested %d documents, %d skipped, %d new segments)",
			report.Documents, len(report.Skipped), report.Stored)))
	}
	stream.send(domain.Partial(" (Assistant ready)"))
	return domain.Complete("Done"), true
}

// IngestFiles adds files to the store while the session is running.
func (s *Session) IngestFiles(ctx context.Context, paths []string) (domain.IngestReport, error) {
	if s.cfg.Ingester == nil {
		return domain.IngestReport{}, nil
	}
	return s.writeStore(ctx, func() (domain.IngestReport, error) {
		return s.cfg.Ingester.IngestFiles(ctx, paths, nil)
	})
}

// writeStore runs an ingestion with retrieval locked out.
func (s *Session) writeStore(ctx context.Context, run func() (domain.IngestReport, error)) (domain.IngestReport, error) {
	if err := s.store.Acquire(ctx, storeWeight); err != nil {
		return domain.IngestReport{}, err
	}
	defer s.store.Release(storeWeight)
	began := s.now()
	report, err := run()
	s.cfg.Logger.LogIngest(report, s.now().Sub(began), err)
	return report, err
}

// Ask streams the answer to question. It fails fast with ErrEmptyQuestion or,
// while another answer is streaming, domain.ErrBusy.
func (s *Session) Ask(ctx context.Context, question string) (*Stream, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}
	if !s.active.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	stream, sctx := newStream(ctx)
	go func() {
		defer stream.finish()
		ev, ok := s.answer(sctx, stream, q)
		// A consumer may ask again as soon as it sees the terminal event.
		s.active.Store(false)
		if ok {
			stream.send(ev)
		}
	}()
	return stream, nil
}

func (s *Session) answer(ctx context.Context, stream *Stream, question string) (domain.Event, bool) {
	began := s.now()
	m := s.cfg.Metrics
	m.QuestionsActive.Inc()
	defer m.QuestionsActive.Dec()

	var matches []domain.Match
	finish := func(outcome string, err error) {
		m.RecordQuestion(outcome, s.now().Sub(began))
		s.cfg.Logger.LogQuestion(question, len(matches), s.now().Sub(began), outcome, err)
	}

	if s.cfg.Retriever != nil {
		// Waiting for an ingestion to finish must not outlive a cancel.
		err := s.store.Acquire(ctx, 1)
		if err == nil {
			matches, err = s.cfg.Retriever.Retrieve(ctx, question, s.cfg.TopK)
			s.store.Release(1)
		}
		if stream.cancelled() {
			finish("cancelled", nil)
			return domain.Event{}, false
		}
		if err != nil {
			finish("failed", err)
			return domain.Failure(err), true
		}
	}

	asked := s.now()
	req := chat.Request{
		System:  s.cfg.SystemPrompt,
		History: s.cfg.History.Messages(),
		Prompt:  BuildPrompt(question, matches),
	}
	answer, err := s.cfg.Completer.Complete(ctx, req, func(text string) {
		stream.send(domain.Partial(text))
	})
	if stream.cancelled() {
		finish("cancelled", nil)
		return domain.Event{}, false
	}
	if err != nil {
		finish("failed", err)
		return domain.Failure(err), true
	}
	s.cfg.History.Append(
		domain.Message{Role: domain.RoleUser, Content: question, At: asked},
		domain.Message{Role: domain.RoleAssistant, Content: answer, At: s.now()},
	)
	finish("answered", nil)
	return domain.Complete(answer), true
}

// BuildPrompt prepends the retrieved segments to the question.
func BuildPrompt(question string, matches []domain.Match) string {
	if len(matches) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Answer the question using the context below. If the context does not contain the answer, say that you don't know.\n\n[Context]\n")
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[%d: %s]\n%s", i+1, filepath.Base(m.Segment.Source), m.Segment.Text)
	}
	b.WriteString("\n\n[Question]\n")
	b.WriteString(question)
	return b.String()
}
