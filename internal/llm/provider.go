// Package llm provides the text embedder behind the route search index.
package llm

import (
	"context"
	"io"
	"time"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/utils"
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)

	// Name returns the provider name
	Name() string
}

// NewEmbedder creates the configured embedder wrapped with retries
func NewEmbedder(cfg config.SemanticConfig) (Embedder, error) {
	p, err := NewOllamaEmbedder(cfg)
	if err != nil {
		// Ensure we don't return a non-nil Embedder when err != nil
		return nil, err
	}
	return NewRetryableEmbedder(p, 3, 30*time.Second), nil
}

// RetryableEmbedder wraps an embedder with retry logic
type RetryableEmbedder struct {
	embedder   Embedder
	maxRetries int
	timeout    time.Duration
}

// NewRetryableEmbedder creates a new retryable embedder
func NewRetryableEmbedder(embedder Embedder, maxRetries int, timeout time.Duration) *RetryableEmbedder {
	return &RetryableEmbedder{
		embedder:   embedder,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

// Embed generates embeddings with retry logic. A cancelled ctx is not retried.
func (r *RetryableEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var result []float64
	err := utils.Retry(ctx, r.maxRetries, time.Second, func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		var err error
		result, err = r.embedder.Embed(timeoutCtx, text)
		return err
	}, func(error) bool {
		return ctx.Err() == nil
	})
	return result, err
}

// Name returns the provider name
func (r *RetryableEmbedder) Name() string {
	return r.embedder.Name()
}

var _ Embedder = (*RetryableEmbedder)(nil)
var _ io.Closer = (*RetryableEmbedder)(nil)

// Close implements io.Closer
func (r *RetryableEmbedder) Close() error {
	if closer, ok := r.embedder.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
