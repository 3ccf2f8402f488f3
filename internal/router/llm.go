package router

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/alexchuang650730/aicore0624-sub006/internal/backend"
	"github.com/alexchuang650730/aicore0624-sub006/internal/expert"
	"go.uber.org/zap"
)

// DefaultClassifierPrompt asks the backend to pick experts by id.
const DefaultClassifierPrompt = `You route user requests to specialist experts.

Available experts:
{{#each experts}}- {{id}}: {{{name}}}
{{/each}}
Request: {{request}}

Reply with the ids of every expert that should answer, comma separated, and nothing else.`

// LLMConfig represents LLM routing configuration
type LLMConfig struct {
	PromptTemplate string `json:"prompt_template" yaml:"prompt_template"`
}

// LLMClassifier asks a backend which experts apply to a request.
type LLMClassifier struct {
	catalog *expert.Catalog
	prompt  string
	backend backend.Backend
	logger  *zap.Logger
	experts []map[string]interface{}
}

// NewLLMClassifier creates a classifier. A nil cfg or empty template uses
// DefaultClassifierPrompt.
func NewLLMClassifier(catalog *expert.Catalog, cfg *LLMConfig, gen backend.Backend, logger *zap.Logger) (*LLMClassifier, error) {
	if gen == nil {
		return nil, fmt.Errorf("llm classifier requires a backend")
	}

	prompt := DefaultClassifierPrompt
	if cfg != nil && cfg.PromptTemplate != "" {
		prompt = cfg.PromptTemplate
	}

	n, err := catalog.Engine().CountRequestSlots(prompt)
	if err != nil {
		return nil, fmt.Errorf("llm prompt template: %w", err)
	}
	if n != 1 {
		return nil, fmt.Errorf("llm prompt template must contain exactly one {{request}} slot, found %d", n)
	}

	defs := catalog.Definitions()
	experts := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		experts = append(experts, map[string]interface{}{
			"id":   def.ID,
			"name": def.DisplayName,
		})
	}

	return &LLMClassifier{
		catalog: catalog,
		prompt:  prompt,
		backend: gen,
		logger:  logger,
		experts: experts,
	}, nil
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text string) ([]string, error) {
	prompt, err := c.catalog.Engine().RenderRequest(c.prompt, text, map[string]interface{}{
		"experts": c.experts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	c.logger.Debug("calling llm for routing", zap.String("prompt", prompt))

	response, err := c.backend.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	c.logger.Debug("llm response received", zap.String("response", response))

	ids := matchLLMResponse(response, c.catalog.IDs())
	if len(ids) == 0 {
		c.logger.Warn("llm response did not match any expert", zap.String("response", response))
	}
	return ids, nil
}

// matchLLMResponse extracts expert ids from a free-text reply. Tokens that
// equal an id (ignoring case) win; when there are none, any id contained in
// the reply is accepted.
func matchLLMResponse(response string, ids []string) []string {
	normalized := strings.ToLower(strings.TrimSpace(response))

	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-')
	})
	tokenSet := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = true
	}

	var exact []string
	for _, id := range ids {
		if tokenSet[strings.ToLower(id)] {
			exact = append(exact, id)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	// Try partial match - check if response contains any expert id
	var partial []string
	for _, id := range ids {
		if strings.Contains(normalized, strings.ToLower(id)) {
			partial = append(partial, id)
		}
	}
	return partial
}

var _ Classifier = (*LLMClassifier)(nil)
