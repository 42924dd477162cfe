package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ragchat/internal/embedding"
)

// Embedder embeds texts with a Gemini embedding model in a single batch call.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, embedding.Wrap("create gemini client", err)
	}
	return &Embedder{client: client, model: client.EmbeddingModel(model)}, nil
}

func (e *Embedder) Name() string { return "gemini" }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, embedding.Wrap(fmt.Sprintf("gemini batch of %d", len(texts)), err)
	}
	return toVectors(texts, resp)
}

func toVectors(texts []string, resp *genai.BatchEmbedContentsResponse) ([][]float32, error) {
	if resp == nil {
		return nil, embedding.Errorf("gemini returned no response")
	}
	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb != nil {
			vectors[i] = emb.Values
		}
	}
	if err := embedding.Check(texts, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
