package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder over langchaingo's OpenAI client.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures an OpenAIEmbedder.
type Option func(*OpenAIEmbedder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *OpenAIEmbedder) { e.logger = l }
}

// NewOpenAIEmbedder creates an embedder for the configured model.
func NewOpenAIEmbedder(cfg OpenAIConfig, opts ...Option) (*OpenAIEmbedder, error) {
	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible services accept any token.
		token = "none"
	}
	clientOpts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	e := &OpenAIEmbedder{embedder: emb, timeout: cfg.Timeout, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Embed returns the vector for text. Any transport or status error means no vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkInput(text); err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Debug("embedding failed", zap.Int("length", len(text)), zap.Error(err))
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return vec, nil
}
