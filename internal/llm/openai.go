package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/models"
)

// Config configures an OpenAI-compatible chat endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIService implements Service over langchaingo's OpenAI client.
type OpenAIService struct {
	client  llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an OpenAIService.
type Option func(*OpenAIService)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *OpenAIService) { s.logger = l }
}

// WithModel replaces the langchaingo model, for tests.
func WithModel(m llms.Model) Option {
	return func(s *OpenAIService) { s.client = m }
}

// NewOpenAIService creates a service for the configured chat model.
func NewOpenAIService(cfg Config, opts ...Option) (*OpenAIService, error) {
	s := &OpenAIService{timeout: cfg.Timeout, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if s.client != nil {
		return s, nil
	}
	if cfg.Model == "" {
		return nil, errors.New("chat model is not configured")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	clientOpts := []openai.Option{openai.WithToken(token), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	s.client = client
	return s, nil
}

// Chunk asks the model to split one block into sections.
func (s *OpenAIService) Chunk(ctx context.Context, source, block string, part, total int) ([]Section, error) {
	reply, err := s.generate(ctx, chunkSystemPrompt, chunkUserPrompt(source, block, part, total),
		llms.WithTemperature(0), llms.WithJSONMode())
	if err != nil {
		return nil, err
	}
	sections, err := parseSections(reply)
	if err != nil {
		s.logger.Debug("unparseable chunk reply", zap.String("source", source), zap.Int("part", part), zap.Error(err))
		return nil, err
	}
	return sections, nil
}

// Rewrite reformulates a query. An empty reply is an error so callers fall back.
func (s *OpenAIService) Rewrite(ctx context.Context, query string) (string, error) {
	reply, err := s.generate(ctx, rewriteSystemPrompt, query, llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	reply = strings.Trim(strings.TrimSpace(reply), `"`)
	if reply == "" {
		return "", errors.New("empty rewrite")
	}
	return reply, nil
}

// Answer generates a reply from the passages.
func (s *OpenAIService) Answer(ctx context.Context, query string, passages []*models.Passage) (string, error) {
	reply, err := s.generate(ctx, answerSystemPrompt, answerUserPrompt(query, passages), llms.WithTemperature(0.3))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (s *OpenAIService) generate(ctx context.Context, system, user string, opts ...llms.CallOption) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	resp, err := s.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	return resp.Choices[0].Content, nil
}
