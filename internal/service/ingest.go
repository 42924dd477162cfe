package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/loader"
	"ragchat/internal/metrics"
	"ragchat/internal/vectorstore"
)

// DocumentLoader produces documents from the knowledge base.
type DocumentLoader interface {
	Load(ctx context.Context, root string) ([]domain.Document, []domain.Skip, error)
	LoadFile(ctx context.Context, path string) (domain.Document, error)
}

type IngestConfig struct {
	BatchSize   int
	Concurrency int
}

// Ingester loads, segments, embeds and stores documents.
type Ingester struct {
	loader   DocumentLoader
	chunker  domain.Chunker
	embedder embedding.Embedder
	store    vectorstore.Storage
	cfg      IngestConfig
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewIngester(l DocumentLoader, c domain.Chunker, e embedding.Embedder, s vectorstore.Storage, cfg IngestConfig, m *metrics.Metrics, log zerolog.Logger) *Ingester {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Ingester{
		loader:   l,
		chunker:  c,
		embedder: e,
		store:    s,
		cfg:      cfg,
		metrics:  m,
		log:      log.With().Str("component", "ingest").Logger(),
	}
}

// IngestDir ingests every supported document under root. progress receives
// human-readable status lines and may be nil.
func (in *Ingester) IngestDir(ctx context.Context, root string, progress func(string)) (domain.IngestReport, error) {
	var report domain.IngestReport
	docs, skips, err := in.loader.Load(ctx, root)
	if err != nil {
		return report, err
	}
	in.metrics.RecordLoad(len(docs), skips)
	report.Documents = len(docs)
	report.Skipped = skips
	return report, in.ingest(ctx, docs, &report, progress)
}

// IngestFiles ingests individual files. Unsupported files are ignored and
// excluded files are reported as skips.
func (in *Ingester) IngestFiles(ctx context.Context, paths []string, progress func(string)) (domain.IngestReport, error) {
	var (
		report domain.IngestReport
		docs   []domain.Document
	)
	for _, p := range paths {
		doc, err := in.loader.LoadFile(ctx, p)
		var skip domain.Skip
		switch {
		case errors.Is(err, loader.ErrUnsupported):
			continue
		case errors.As(err, &skip):
			report.Skipped = append(report.Skipped, skip)
		case err != nil:
			return report, err
		default:
			docs = append(docs, doc)
		}
	}
	in.metrics.RecordLoad(len(docs), report.Skipped)
	report.Documents = len(docs)
	return report, in.ingest(ctx, docs, &report, progress)
}

// ingest embeds every segment of docs before writing any of them, so a failed
// embedding leaves the store untouched.
func (in *Ingester) ingest(ctx context.Context, docs []domain.Document, report *domain.IngestReport, progress func(string)) error {
	if progress == nil {
		progress = func(string) {}
	}
	var segments []domain.Segment
	for _, d := range docs {
		segments = append(segments, in.chunker.Chunk(d)...)
	}
	report.Segments = len(segments)
	if len(segments) == 0 {
		return nil
	}

	progress(fmt.Sprintf("\nEmbedding %d segments...", len(segments)))
	vectors, err := in.embed(ctx, segments)
	if err != nil {
		return err
	}

	progress("\nIngesting documents into the vector store (will skip if already exists)...")
	for start := 0; start < len(segments); start += in.cfg.BatchSize {
		end := min(start+in.cfg.BatchSize, len(segments))
		stored, err := in.store.Upsert(ctx, segments[start:end], vectors[start:end])
		report.Stored += stored
		in.metrics.SegmentsStoredTotal.Add(float64(stored))
		if err != nil {
			return err
		}
	}
	if n, err := in.store.Count(ctx); err == nil {
		in.metrics.StoreSegments.Set(float64(n))
	}
	in.log.Debug().Int("segments", report.Segments).Int("stored", report.Stored).Msg("segments upserted")
	return nil
}

func (in *Ingester) embed(ctx context.Context, segments []domain.Segment) ([][]float32, error) {
	vectors := make([][]float32, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.Concurrency)
	for start := 0; start < len(segments); start += in.cfg.BatchSize {
		end := min(start+in.cfg.BatchSize, len(segments))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, seg := range segments[start:end] {
				texts = append(texts, seg.Text)
			}
			began := time.Now()
			vecs, err := in.embedder.Embed(gctx, texts)
			if err == nil && len(vecs) != len(texts) {
				err = embedding.Errorf("got %d embeddings for %d segments", len(vecs), len(texts))
			}
			in.metrics.RecordEmbedding(len(texts), time.Since(began), err)
			if err != nil {
				return err
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
