package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragchat/internal/chat"
	chatgemini "ragchat/internal/chat/gemini"
	chatollama "ragchat/internal/chat/ollama"
	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/embedding/gemini"
	"ragchat/internal/embedding/ollama"
	"ragchat/internal/embedding/openai"
	"ragchat/internal/loader"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
	"ragchat/internal/retriever"
	"ragchat/internal/service"
	"ragchat/internal/tui"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/chromem"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
	"ragchat/internal/watcher"
)

// geminiBatchLimit is the largest batch BatchEmbedContents accepts.
const geminiBatchLimit = 100

func main() {
	_ = godotenv.Load()

	var (
		cfgPath     string
		dir         string
		watch       bool
		metricsAddr string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragchat/config.yaml if not provided)")
	flag.StringVar(&dir, "dir", "", "Knowledge base directory (overrides knowledge_base.dir)")
	flag.BoolVar(&watch, "watch", false, "Ingest files added to the knowledge base while running")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if dir != "" {
		cfg.KnowledgeBase.Dir = dir
	}
	if watch {
		cfg.KnowledgeBase.Watch = true
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// The terminal belongs to the UI, so logs go to the file or nowhere.
	logCfg := logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, File: cfg.Log.File, Output: io.Discard}
	lg, err := logger.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer lg.Close()
	logger.InitGlobalLogger(lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	emb, closeEmb, err := buildEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	defer closeEmb()

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("vector store init failed: %v", err)
	}
	defer st.Close()

	completer, closeCompleter, err := buildCompleter(ctx, cfg)
	if err != nil {
		log.Fatalf("chat model init failed: %v", err)
	}
	defer closeCompleter()

	ch, err := chunker.NewCharacterChunker(cfg.Segmenter.MaxChars, cfg.Segmenter.Overlap)
	if err != nil {
		log.Fatal(err)
	}
	docs, err := buildLoader(cfg, lg)
	if err != nil {
		log.Fatal(err)
	}
	history, err := chat.NewHistory(cfg.Chat.HistoryMessages)
	if err != nil {
		log.Fatal(err)
	}

	ingester := service.NewIngester(docs, ch, emb, st, service.IngestConfig{
		BatchSize:   cfg.Embedder.BatchSize,
		Concurrency: cfg.Embedder.Concurrency,
	}, m, lg.Component("ingest"))

	sessCfg := service.SessionConfig{
		KnowledgeBase: cfg.KnowledgeBase.Dir,
		SystemPrompt:  cfg.Chat.SystemPrompt,
		TopK:          cfg.Retriever.TopK,
		Ingester:      ingester,
		Completer:     completer,
		History:       history,
		Metrics:       m,
		Logger:        lg,
	}
	if cfg.Retriever.Enabled {
		sessCfg.Retriever = retriever.New(emb, st)
	}
	session := service.NewSession(sessCfg)

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m, lg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.KnowledgeBase.Watch {
		w, err := watcher.New(watcher.Config{
			Supports: docs.Supports,
			Ingest:   session.IngestFiles,
			Logger:   *lg.GetZerolog(),
		})
		if err != nil {
			log.Fatalf("watcher init failed: %v", err)
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx, cfg.KnowledgeBase.Dir); err != nil {
				lg.GetZerolog().Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	lg.GetZerolog().Info().
		Str("knowledge_base", cfg.KnowledgeBase.Dir).
		Str("embedder", emb.Name()).
		Str("vector_store", cfg.VectorStore.Type).
		Str("chat", completer.Name()).
		Msg("starting")

	p := tea.NewProgram(tui.New(ctx, session), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatal(err)
	}
}

func buildEmbedder(ctx context.Context, cfg *config.AppConfig) (embedding.Embedder, func(), error) {
	noop := func() {}
	var emb embedding.Embedder
	closer := noop
	switch cfg.Embedder.Type {
	case "ollama":
		oc := cfg.Embedder.Ollama
		emb = ollama.NewClient(ollama.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		})
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, noop, err
		}
		emb = client
	case "gemini":
		gc := cfg.Embedder.Gemini
		key := os.Getenv(gc.APIKeyEnv)
		if key == "" {
			return nil, noop, fmt.Errorf("%w: %s is not set", domain.ErrMissingCredential, gc.APIKeyEnv)
		}
		g, err := gemini.NewEmbedder(ctx, key, gc.Model)
		if err != nil {
			return nil, noop, err
		}
		emb = embedding.Batched{Embedder: g, Size: geminiBatchLimit}
		closer = func() { _ = g.Close() }
	default:
		return nil, noop, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, cfg.Embedder.Type)
	}
	return embedding.NewRateLimited(emb, cfg.Embedder.RequestsPerSecond, cfg.Embedder.Concurrency), closer, nil
}

func buildStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "chromem":
		cc := cfg.VectorStore.Chromem
		return chromem.NewStorage(chromem.Config{Path: cc.Path, Collection: cc.Collection, Compress: cc.Compress})
	case "qdrant":
		qc := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     os.Getenv(qc.APIKeyEnv),
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, cfg.VectorStore.Type)
	}
}

func buildCompleter(ctx context.Context, cfg *config.AppConfig) (chat.Completer, func(), error) {
	noop := func() {}
	switch cfg.Chat.Type {
	case "gemini":
		gc := cfg.Chat.Gemini
		key := os.Getenv(gc.APIKeyEnv)
		if key == "" {
			return nil, noop, fmt.Errorf("%w: %s is not set", domain.ErrMissingCredential, gc.APIKeyEnv)
		}
		c, err := chatgemini.New(ctx, key, gc.Model)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { _ = c.Close() }, nil
	case "ollama":
		oc := cfg.Chat.Ollama
		return chatollama.New(chatollama.Config{BaseURL: oc.BaseURL, Model: oc.Model}), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown chat model %q", domain.ErrInvalidConfig, cfg.Chat.Type)
	}
}

// buildLoader registers a parser for every configured extension and nothing
// else. Plain-text formats are read as UTF-8.
func buildLoader(cfg *config.AppConfig, lg *logger.Logger) (*loader.Loader, error) {
	l := loader.New(*lg.GetZerolog())
	for _, ext := range cfg.KnowledgeBase.Extensions {
		switch ext {
		case ".pdf":
			l.Register(ext, loader.PDFParser{})
		case ".txt", ".md", ".markdown":
			l.Register(ext, loader.TextParser{})
		default:
			return nil, fmt.Errorf("%w: no parser for %q files", domain.ErrInvalidConfig, ext)
		}
	}
	return l, nil
}

func serveMetrics(addr string, m *metrics.Metrics, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.GetZerolog().Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
