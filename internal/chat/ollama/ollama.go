package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ragchat/internal/chat"
)

// Completer streams answers from a local Ollama server via /api/chat.
type Completer struct {
	baseURL string
	model   string
	client  *http.Client
}

type Config struct {
	BaseURL string
	Model   string
	// Timeout bounds the whole streamed response; zero means no limit.
	Timeout time.Duration
}

func New(cfg Config) *Completer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	return &Completer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Completer) Name() string { return "ollama:" + c.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chunk struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error"`
}

func (c *Completer) Complete(ctx context.Context, req chat.Request, onPartial func(string)) (string, error) {
	msgs := make([]message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, message{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		msgs = append(msgs, message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Prompt})

	data, err := json.Marshal(map[string]any{"model": c.model, "messages": msgs, "stream": true})
	if err != nil {
		return "", chat.Wrap("encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", chat.Wrap("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", chat.Wrap("ollama chat", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", chat.Errorf("ollama chat failed: %s %s", resp.Status, bytes.TrimSpace(msg))
	}

	var answer strings.Builder
	dec := json.NewDecoder(resp.Body)
	for {
		var ch chunk
		if err := dec.Decode(&ch); err != nil {
			if errors.Is(err, io.EOF) {
				return answer.String(), chat.Errorf("ollama stream ended before completion")
			}
			return answer.String(), chat.Wrap("ollama stream", err)
		}
		if ch.Error != "" {
			return answer.String(), chat.Errorf("ollama: %s", ch.Error)
		}
		if ch.Message.Content != "" {
			answer.WriteString(ch.Message.Content)
			onPartial(ch.Message.Content)
		}
		if ch.Done {
			return answer.String(), nil
		}
	}
}
