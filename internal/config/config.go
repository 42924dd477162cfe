package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ragchat/internal/domain"
)

// KnowledgeBaseConfig locates the documents to ingest.
type KnowledgeBaseConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Watch      bool     `yaml:"watch"`
}

// SegmenterConfig configures the character windows documents are split into.
type SegmenterConfig struct {
	MaxChars int `yaml:"max_chars"`
	Overlap  int `yaml:"overlap"`
}

// OllamaEmbedderConfig holds configuration for a local Ollama embedder.
type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeminiEmbedderConfig holds configuration for Gemini embeddings.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string                `yaml:"type"`
	BatchSize         int                   `yaml:"batch_size"`
	Concurrency       int                   `yaml:"concurrency"`
	RequestsPerSecond float64               `yaml:"requests_per_second"`
	Ollama            *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
	OpenAI            *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini            *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string         `yaml:"type"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
}

// ChromemConfig configures the embedded chromem-go store. An empty path keeps
// it in memory.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrieverConfig controls context retrieval for questions.
type RetrieverConfig struct {
	Enabled bool `yaml:"enabled"`
	TopK    int  `yaml:"top_k"`
}

// GeminiChatConfig configures the hosted Gemini chat model.
type GeminiChatConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// OllamaChatConfig configures a local Ollama chat model.
type OllamaChatConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ChatConfig selects the completion backend and the conversation window.
type ChatConfig struct {
	Type            string            `yaml:"type"`
	HistoryMessages int               `yaml:"history_messages"`
	SystemPrompt    string            `yaml:"system_prompt"`
	Gemini          *GeminiChatConfig `yaml:"gemini,omitempty"`
	Ollama          *OllamaChatConfig `yaml:"ollama,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	Retriever     RetrieverConfig     `yaml:"retriever"`
	Chat          ChatConfig          `yaml:"chat"`
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

const DefaultSystemPrompt = "You are GSV Bot, a helpful, friendly, and professional chatbot for a university. " +
	"Keep your answers concise and only relevant to university topics."

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	applyConfigDefaults(cfg)
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		KnowledgeBase: KnowledgeBaseConfig{Dir: "knowledge-base", Extensions: []string{".pdf"}},
		Segmenter:     SegmenterConfig{MaxChars: 1000, Overlap: 100},
		Embedder:      EmbedderConfig{Type: "ollama", BatchSize: 32, Concurrency: 4},
		VectorStore:   VectorStoreConfig{Type: "memory"},
		Retriever:     RetrieverConfig{Enabled: true, TopK: 3},
		Chat:          ChatConfig{Type: "gemini", HistoryMessages: 10, SystemPrompt: DefaultSystemPrompt},
		Log:           LogConfig{Level: "info", File: "ragchat.log"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.KnowledgeBase.Dir == "" {
		cfg.KnowledgeBase.Dir = "knowledge-base"
	}
	if len(cfg.KnowledgeBase.Extensions) == 0 {
		cfg.KnowledgeBase.Extensions = []string{".pdf"}
	}
	for i, ext := range cfg.KnowledgeBase.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.KnowledgeBase.Extensions[i] = ext
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	switch cfg.Embedder.Type {
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "embeddinggemma"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 600
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	case "gemini":
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Embedder.Gemini.Model == "" {
			cfg.Embedder.Gemini.Model = "text-embedding-004"
		}
	}
	switch cfg.VectorStore.Type {
	case "chromem":
		if cfg.VectorStore.Chromem == nil {
			cfg.VectorStore.Chromem = &ChromemConfig{}
		}
		if cfg.VectorStore.Chromem.Collection == "" {
			cfg.VectorStore.Chromem.Collection = "ragchat"
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragchat"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	switch cfg.Chat.Type {
	case "gemini":
		if cfg.Chat.Gemini == nil {
			cfg.Chat.Gemini = &GeminiChatConfig{}
		}
		if cfg.Chat.Gemini.APIKeyEnv == "" {
			cfg.Chat.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Chat.Gemini.Model == "" {
			cfg.Chat.Gemini.Model = "gemini-2.5-flash"
		}
	case "ollama":
		if cfg.Chat.Ollama == nil {
			cfg.Chat.Ollama = &OllamaChatConfig{}
		}
		if cfg.Chat.Ollama.BaseURL == "" {
			cfg.Chat.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Chat.Ollama.Model == "" {
			cfg.Chat.Ollama.Model = "llama3.2"
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports the first inconsistency as an ErrInvalidConfig.
func (c *AppConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Segmenter.MaxChars <= 0 {
		return invalid("segmenter.max_chars must be positive, got %d", c.Segmenter.MaxChars)
	}
	if c.Segmenter.Overlap < 0 || c.Segmenter.Overlap >= c.Segmenter.MaxChars {
		return invalid("segmenter.overlap must be in [0, %d), got %d", c.Segmenter.MaxChars, c.Segmenter.Overlap)
	}
	switch c.Embedder.Type {
	case "ollama", "openai", "gemini":
	default:
		return invalid("unknown embedder.type %q", c.Embedder.Type)
	}
	if c.Embedder.BatchSize < 1 || c.Embedder.Concurrency < 1 {
		return invalid("embedder.batch_size and embedder.concurrency must be at least 1")
	}
	if c.Embedder.RequestsPerSecond < 0 {
		return invalid("embedder.requests_per_second must not be negative")
	}
	switch c.VectorStore.Type {
	case "memory", "chromem", "qdrant":
	default:
		return invalid("unknown vector_store.type %q", c.VectorStore.Type)
	}
	if c.Retriever.Enabled && c.Retriever.TopK < 1 {
		return invalid("retriever.top_k must be at least 1, got %d", c.Retriever.TopK)
	}
	switch c.Chat.Type {
	case "gemini", "ollama":
	default:
		return invalid("unknown chat.type %q", c.Chat.Type)
	}
	if c.Chat.HistoryMessages < 2 {
		return invalid("chat.history_messages must be at least 2, got %d", c.Chat.HistoryMessages)
	}
	return nil
}
