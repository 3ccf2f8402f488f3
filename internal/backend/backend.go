package backend

import (
	"context"
	"fmt"
	"strings"
)

// Backend generates text for a prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate implements Backend.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Echo is an offline backend that answers with a canned acknowledgement of
// the prompt. It is used when no LLM credentials are configured.
type Echo struct {
	// MaxPromptChars bounds how much of the prompt is echoed back. Zero means 200.
	MaxPromptChars int
}

// Generate implements Backend.
func (e Echo) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	limit := e.MaxPromptChars
	if limit <= 0 {
		limit = 200
	}

	excerpt := strings.TrimSpace(prompt)
	if r := []rune(excerpt); len(r) > limit {
		excerpt = string(r[:limit]) + "..."
	}

	return fmt.Sprintf("Offline response (no LLM configured). Prompt received:\n%s", excerpt), nil
}

var (
	_ Backend = Func(nil)
	_ Backend = Echo{}
)
