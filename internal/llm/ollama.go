package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/doITmagic/api-contract-mcp/internal/config"
)

// DefaultOllamaURL is used when the semantic config leaves the server unset
const DefaultOllamaURL = "http://localhost:11434"

// OllamaEmbedder implements Embedder with an Ollama embedding model
type OllamaEmbedder struct {
	client *ollama.LLM
	model  string
}

// NewOllamaEmbedder creates an embedder for cfg.EmbedModel
func NewOllamaEmbedder(cfg config.SemanticConfig) (*OllamaEmbedder, error) {
	baseURL := cfg.OllamaBaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if cfg.EmbedModel == "" {
		return nil, fmt.Errorf("ollama embedding model is required (set semantic.embed_model)")
	}

	client, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(cfg.EmbedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama embedding client: %w", err)
	}
	return &OllamaEmbedder{client: client, model: cfg.EmbedModel}, nil
}

// Embed returns the embedding of text
func (p *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := p.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned by %s", p.model)
	}

	result := make([]float64, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float64(v)
	}
	return result, nil
}

// Name returns the provider name
func (p *OllamaEmbedder) Name() string {
	return "ollama"
}
