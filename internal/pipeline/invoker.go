package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/backend"
	"github.com/alexchuang650730/aicore0624-sub006/internal/expert"
	"github.com/alexchuang650730/aicore0624-sub006/internal/metrics"
	"github.com/alexchuang650730/aicore0624-sub006/internal/router"
	"github.com/alexchuang650730/aicore0624-sub006/internal/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExpertResponse is the tagged output of one expert.
type ExpertResponse struct {
	ExpertID string `json:"expert_id"`
	Text     string `json:"text"`

	// Err is set when the backend call failed and Text is a placeholder.
	Err error `json:"-"`
}

// Failed reports whether Text is an error placeholder.
func (r ExpertResponse) Failed() bool {
	return r.Err != nil
}

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// Sequential calls experts one after another instead of concurrently.
	Sequential bool

	// MaxConcurrency bounds in-flight backend calls per request. Zero means
	// one goroutine per expert.
	MaxConcurrency int
}

// Invoker renders each selected expert's prompt and calls the backend.
type Invoker struct {
	catalog *expert.Catalog
	backend backend.Backend
	opts    InvokerOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInvoker creates an Invoker. m may be nil.
func NewInvoker(catalog *expert.Catalog, gen backend.Backend, opts InvokerOptions, m *metrics.Metrics, logger *zap.Logger) *Invoker {
	return &Invoker{
		catalog: catalog,
		backend: gen,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Invoke returns exactly one response per expert in decision, in the same
// order. A failing expert yields a placeholder and never aborts the others.
// If ctx ends before every expert finished, Invoke fails and returns no
// responses.
func (inv *Invoker) Invoke(ctx context.Context, decision *router.Decision) ([]ExpertResponse, error) {
	ids := decision.ExpertIDs
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: decision selects no experts", ErrAggregation)
	}

	// Render every prompt first; a template failure is a configuration bug.
	defs := make([]expert.Definition, len(ids))
	prompts := make([]string, len(ids))
	for i, id := range ids {
		def, err := inv.catalog.Get(id)
		if err != nil {
			return nil, err
		}
		prompt, err := inv.catalog.Render(id, decision.RequestText)
		if err != nil {
			return nil, err
		}
		defs[i] = def
		prompts[i] = prompt
	}

	responses := make([]ExpertResponse, len(ids))

	if inv.opts.Sequential || len(ids) == 1 {
		for i := range ids {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("invocation canceled: %w", err)
			}
			responses[i] = inv.call(ctx, defs[i], prompts[i])
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		if inv.opts.MaxConcurrency > 0 {
			g.SetLimit(inv.opts.MaxConcurrency)
		}

		for i := range ids {
			g.Go(func() error {
				// Each goroutine owns responses[i]; no locking needed.
				responses[i] = inv.call(gctx, defs[i], prompts[i])
				return nil
			})
		}

		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("invocation canceled: %w", err)
	}

	return responses, nil
}

// call performs one backend call and tags the result.
func (inv *Invoker) call(ctx context.Context, def expert.Definition, prompt string) ExpertResponse {
	ctx, span := tracer.StartSpan(ctx, "expert.generate", attribute.String("expert.id", def.ID))
	defer span.End()

	start := time.Now()
	text, err := inv.backend.Generate(ctx, prompt)
	elapsed := time.Since(start)
	inv.metrics.ObserveExpert(def.ID, err == nil, elapsed)

	if err != nil {
		tracer.RecordError(span, err)
		inv.logger.Warn("expert call failed",
			zap.String("expert_id", def.ID),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return ExpertResponse{
			ExpertID: def.ID,
			Text:     tag(def, fmt.Sprintf("expert %s failed: %v", def.ID, err)),
			Err:      err,
		}
	}

	tracer.SetOK(span)
	inv.logger.Debug("expert call completed",
		zap.String("expert_id", def.ID),
		zap.Duration("latency", elapsed),
	)

	return ExpertResponse{
		ExpertID: def.ID,
		Text:     tag(def, text),
	}
}

// tag prefixes text with the expert's display tag.
func tag(def expert.Definition, text string) string {
	return def.Tag() + "\n" + text
}
