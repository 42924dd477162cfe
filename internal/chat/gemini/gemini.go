package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"ragchat/internal/chat"
	"ragchat/internal/domain"
)

// Completer streams answers from a Gemini model through a chat session.
type Completer struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Completer, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, chat.Wrap("create gemini client", err)
	}
	return &Completer{client: client, model: model}, nil
}

func (c *Completer) Name() string { return "gemini:" + c.model }

func (c *Completer) Complete(ctx context.Context, req chat.Request, onPartial func(string)) (string, error) {
	m := c.client.GenerativeModel(c.model)
	if req.System != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	cs := m.StartChat()
	cs.History = toContents(req.History)

	it := cs.SendMessageStream(ctx, genai.Text(req.Prompt))
	var answer strings.Builder
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return answer.String(), chat.Wrap("gemini stream", err)
		}
		for _, text := range textParts(resp) {
			answer.WriteString(text)
			onPartial(text)
		}
	}
	return answer.String(), nil
}

// textParts returns the non-empty text parts of a streamed chunk in order.
func textParts(resp *genai.GenerateContentResponse) []string {
	if resp == nil {
		return nil
	}
	var out []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok && text != "" {
				out = append(out, string(text))
			}
		}
	}
	return out
}

func (c *Completer) Close() error {
	return c.client.Close()
}

func toContents(msgs []domain.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	return out
}
