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
)

// DefaultSynthesisPrompt is sent to the backend when synthesis is enabled.
const DefaultSynthesisPrompt = `Several experts answered the same request. Write a short synthesis that reconciles their views and states the overall recommendation.

Request and expert answers:
{{request}}`

// Options configures an Orchestrator.
type Options struct {
	Invoker InvokerOptions

	// SynthesisNote replaces DefaultSynthesisNote.
	SynthesisNote string

	// Synthesize asks the backend to summarise multi-expert answers. The
	// summary replaces the fixed note; on failure the note is kept.
	Synthesize bool

	// SynthesisPrompt replaces DefaultSynthesisPrompt.
	SynthesisPrompt string

	// Timeout bounds a whole Process call. Zero means no extra bound.
	Timeout time.Duration
}

// Orchestrator runs route, invoke and aggregate for one request. Experts are
// called concurrently unless Options.Invoker.Sequential is set, so a request
// costs about as long as its slowest backend call.
type Orchestrator struct {
	catalog *expert.Catalog
	router  *router.Router
	invoker *Invoker
	backend backend.Backend
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewOrchestrator wires the pipeline. m may be nil.
func NewOrchestrator(
	catalog *expert.Catalog,
	r *router.Router,
	gen backend.Backend,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if catalog == nil || r == nil || gen == nil {
		return nil, fmt.Errorf("catalog, router and backend are required")
	}
	if opts.SynthesisPrompt == "" {
		opts.SynthesisPrompt = DefaultSynthesisPrompt
	}
	if opts.Synthesize {
		n, err := catalog.Engine().CountRequestSlots(opts.SynthesisPrompt)
		if err != nil {
			return nil, fmt.Errorf("synthesis prompt: %w", err)
		}
		if n != 1 {
			return nil, fmt.Errorf("synthesis prompt must contain exactly one {{request}} slot, found %d", n)
		}
	}

	return &Orchestrator{
		catalog: catalog,
		router:  r,
		invoker: NewInvoker(catalog, gen, opts.Invoker, m, logger),
		backend: gen,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}, nil
}

// Process answers one request. When every expert failed, the answer holding
// their error text is returned together with ErrAllExpertsFailed.
func (o *Orchestrator) Process(ctx context.Context, text string) (*FinalAnswer, error) {
	start := time.Now()

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	ctx, span := tracer.StartSpan(ctx, "pipeline.process")
	defer span.End()

	answer, err := o.process(ctx, text)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case answer == nil:
		outcome = "error"
	case answer.AllFailed():
		outcome = "failed"
	case len(answer.Failed) > 0:
		outcome = "partial"
	}
	o.metrics.ObserveRequest(outcome, elapsed)

	if err != nil {
		tracer.RecordError(span, err)
		o.logger.Error("request failed", zap.Duration("duration", elapsed), zap.Error(err))
		if answer != nil {
			answer.Duration = elapsed
		}
		return answer, err
	}

	answer.Duration = elapsed
	span.SetAttributes(attribute.StringSlice("experts", answer.ExpertIDs))
	tracer.SetOK(span)

	o.logger.Info("request processed",
		zap.Strings("experts", answer.ExpertIDs),
		zap.Strings("failed", answer.Failed),
		zap.Bool("synthesized", answer.Synthesized),
		zap.Duration("duration", elapsed),
	)

	return answer, nil
}

func (o *Orchestrator) process(ctx context.Context, text string) (*FinalAnswer, error) {
	decision, err := o.router.Route(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	if decision.IsFallback() {
		o.metrics.ObserveFallback()
	}

	responses, err := o.invoker.Invoke(ctx, decision)
	if err != nil {
		return nil, fmt.Errorf("invoke: %w", err)
	}

	answer, err := Aggregate(decision, responses, o.opts.SynthesisNote)
	if err != nil {
		return nil, err
	}

	if answer.AllFailed() {
		return answer, ErrAllExpertsFailed
	}

	if o.opts.Synthesize && len(responses) > 1 {
		o.synthesize(ctx, answer, responses)
	}

	return answer, nil
}

// synthesize replaces the fixed note with a backend-written summary.
func (o *Orchestrator) synthesize(ctx context.Context, answer *FinalAnswer, responses []ExpertResponse) {
	sections := joinSections(responses)

	prompt, err := o.catalog.Engine().RenderRequest(o.opts.SynthesisPrompt, sections, nil)
	if err != nil {
		o.logger.Warn("synthesis prompt failed, keeping fixed note", zap.Error(err))
		return
	}

	summary, err := o.backend.Generate(ctx, prompt)
	if err != nil {
		o.logger.Warn("synthesis call failed, keeping fixed note", zap.Error(err))
		return
	}

	answer.Text = sections + SectionSeparator + SynthesisTag + "\n" + summary
	answer.Synthesized = true
}

// SynthesisTag labels a backend-written synthesis.
const SynthesisTag = "【Synthesis】"
