package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain"
	"github.com/aescanero/dago-libs/pkg/ports"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by an LLM backend without a client.
var ErrNotConfigured = errors.New("llm client not configured")

// LLMOptions configures an LLM backend.
type LLMOptions struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LLM sends prompts to a dago LLM client as single user messages.
type LLM struct {
	client ports.LLMClient
	opts   LLMOptions
	logger *zap.Logger
}

// NewLLM creates an LLM backend around client.
func NewLLM(client ports.LLMClient, opts LLMOptions, logger *zap.Logger) *LLM {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &LLM{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Generate implements Backend.
func (b *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	if b.client == nil {
		return "", ErrNotConfigured
	}

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	req := &domain.LLMRequest{
		Model: b.opts.Model,
		Messages: []domain.Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		MaxTokens: b.opts.MaxTokens,
	}

	start := time.Now()
	respInterface, err := b.client.GenerateCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	content, err := completionContent(respInterface)
	if err != nil {
		return "", err
	}

	b.logger.Debug("llm completion received",
		zap.String("model", b.opts.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", len(content)),
	)

	return content, nil
}

// completionContent extracts the text of a completion response.
func completionContent(resp interface{}) (string, error) {
	var content string
	switch r := resp.(type) {
	case *domain.LLMResponse:
		if r == nil {
			return "", fmt.Errorf("empty response from LLM")
		}
		content = r.Content
	case domain.LLMResponse:
		content = r.Content
	default:
		return "", fmt.Errorf("unexpected response type from LLM: %T", resp)
	}

	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty response from LLM")
	}

	return content, nil
}

var _ Backend = (*LLM)(nil)
