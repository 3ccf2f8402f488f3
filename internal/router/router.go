package router

import (
	"context"
	"fmt"

	"github.com/alexchuang650730/aicore0624-sub006/internal/backend"
	"github.com/alexchuang650730/aicore0624-sub006/internal/eval/cel"
	"github.com/alexchuang650730/aicore0624-sub006/internal/expert"
	"github.com/alexchuang650730/aicore0624-sub006/internal/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Mode represents the routing strategy
type Mode string

const (
	// ModeKeyword selects experts by keyword substring matching
	ModeKeyword Mode = "keyword"

	// ModeRules selects experts with CEL rules over the request text
	ModeRules Mode = "rules"

	// ModeLLM asks the backend which experts apply
	ModeLLM Mode = "llm"

	// ModeHybrid tries keywords, then rules, then the LLM
	ModeHybrid Mode = "hybrid"
)

// Paths reported in Decision.PathTaken.
const (
	PathFast     = "fast"
	PathSlow     = "slow"
	PathFallback = "fallback"
)

// Classifier maps request text to candidate expert ids.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]string, error)
}

// Options configures a Router.
type Options struct {
	Mode Mode `json:"mode" yaml:"mode"`

	// MaxExperts caps how many experts a request fans out to. Zero means no cap.
	MaxExperts int `json:"max_experts" yaml:"max_experts"`

	Rules []Rule     `json:"rules,omitempty" yaml:"rules,omitempty"`
	LLM   *LLMConfig `json:"llm,omitempty" yaml:"llm,omitempty"`
}

// Decision is the outcome of routing one request.
type Decision struct {
	RequestText string   `json:"request_text"`
	ExpertIDs   []string `json:"expert_ids"`
	Mode        string   `json:"mode"`
	PathTaken   string   `json:"path_taken"`
	Reasoning   string   `json:"reasoning"`
}

// IsFallback reports whether the decision used the default expert because
// nothing matched.
func (d *Decision) IsFallback() bool {
	return d.PathTaken == PathFallback
}

type stage struct {
	name       string
	path       string
	classifier Classifier
}

// Router handles routing decisions
type Router struct {
	catalog    *expert.Catalog
	mode       Mode
	maxExperts int
	stages     []stage
	logger     *zap.Logger
}

// NewRouter creates a router over catalog. gen is only required for the llm
// mode; in hybrid mode the LLM stage is skipped when gen is nil.
func NewRouter(catalog *expert.Catalog, opts Options, gen backend.Backend, logger *zap.Logger) (*Router, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if opts.Mode == "" {
		opts.Mode = detectMode(opts)
	}
	if err := validateOptions(catalog, opts, gen); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}

	r := &Router{
		catalog:    catalog,
		mode:       opts.Mode,
		maxExperts: opts.MaxExperts,
		logger:     logger,
	}

	keyword := func() stage {
		return stage{name: "keyword", path: PathFast, classifier: NewKeywordClassifier(catalog)}
	}
	rules := func() (stage, error) {
		c, err := NewRuleClassifier(opts.Rules, cel.NewEvaluator(), logger)
		return stage{name: "rules", path: PathFast, classifier: c}, err
	}
	llm := func() (stage, error) {
		c, err := NewLLMClassifier(catalog, opts.LLM, gen, logger)
		return stage{name: "llm", path: PathSlow, classifier: c}, err
	}

	switch opts.Mode {
	case ModeKeyword:
		r.stages = append(r.stages, keyword())

	case ModeRules:
		s, err := rules()
		if err != nil {
			return nil, err
		}
		r.stages = append(r.stages, s)

	case ModeLLM:
		s, err := llm()
		if err != nil {
			return nil, err
		}
		r.stages = append(r.stages, s)

	case ModeHybrid:
		r.stages = append(r.stages, keyword())
		if len(opts.Rules) > 0 {
			s, err := rules()
			if err != nil {
				return nil, err
			}
			r.stages = append(r.stages, s)
		}
		if gen != nil {
			s, err := llm()
			if err != nil {
				return nil, err
			}
			r.stages = append(r.stages, s)
		} else {
			logger.Warn("llm backend not configured, hybrid routing will skip the llm stage")
		}
	}

	return r, nil
}

// Mode returns the active routing mode.
func (r *Router) Mode() Mode {
	return r.mode
}

// Route selects the experts for text. The result always holds at least one
// expert id, in catalog declaration order.
func (r *Router) Route(ctx context.Context, text string) (*Decision, error) {
	ctx, span := tracer.StartSpan(ctx, "router.route", attribute.String("router.mode", string(r.mode)))
	defer span.End()

	for _, s := range r.stages {
		ids, err := s.classifier.Classify(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				tracer.RecordError(span, ctx.Err())
				return nil, fmt.Errorf("routing canceled: %w", ctx.Err())
			}
			r.logger.Warn("classifier failed",
				zap.String("stage", s.name),
				zap.Error(err),
			)
			continue
		}

		selected := r.normalize(ids)
		if len(selected) == 0 {
			r.logger.Debug("classifier matched no experts", zap.String("stage", s.name))
			continue
		}

		decision := &Decision{
			RequestText: text,
			ExpertIDs:   selected,
			Mode:        string(r.mode),
			PathTaken:   s.path,
			Reasoning:   fmt.Sprintf("%s classifier matched %d expert(s)", s.name, len(selected)),
		}
		r.logDecision(decision)
		tracer.SetOK(span)
		return decision, nil
	}

	decision := &Decision{
		RequestText: text,
		ExpertIDs:   []string{r.catalog.Default()},
		Mode:        string(r.mode),
		PathTaken:   PathFallback,
		Reasoning:   "no experts matched",
	}
	r.logDecision(decision)
	tracer.SetOK(span)
	return decision, nil
}

// normalize drops unknown ids, removes duplicates, orders by catalog
// declaration and applies the expert cap.
func (r *Router) normalize(ids []string) []string {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !r.catalog.Has(id) {
			r.logger.Warn("classifier returned unknown expert", zap.String("expert_id", id))
			continue
		}
		wanted[id] = true
	}

	out := make([]string, 0, len(wanted))
	for _, id := range r.catalog.IDs() {
		if wanted[id] {
			out = append(out, id)
		}
	}

	if r.maxExperts > 0 && len(out) > r.maxExperts {
		out = out[:r.maxExperts]
	}
	return out
}

func (r *Router) logDecision(d *Decision) {
	r.logger.Info("routing decision",
		zap.String("mode", d.Mode),
		zap.Strings("experts", d.ExpertIDs),
		zap.String("path", d.PathTaken),
		zap.String("reasoning", d.Reasoning),
	)
}

// detectMode detects the routing mode from configuration
func detectMode(opts Options) Mode {
	if len(opts.Rules) > 0 && opts.LLM != nil {
		return ModeHybrid
	}
	if len(opts.Rules) > 0 {
		return ModeRules
	}
	return ModeKeyword
}

// validateOptions validates the routing configuration
func validateOptions(catalog *expert.Catalog, opts Options, gen backend.Backend) error {
	if opts.MaxExperts < 0 {
		return fmt.Errorf("max_experts must be non-negative")
	}

	for i, rule := range opts.Rules {
		if rule.Condition == "" {
			return fmt.Errorf("rule %d: condition is required", i)
		}
		if !catalog.Has(rule.Target) {
			return fmt.Errorf("rule %d: target %q is not a known expert", i, rule.Target)
		}
	}

	switch opts.Mode {
	case ModeKeyword, ModeHybrid:
	case ModeRules:
		if len(opts.Rules) == 0 {
			return fmt.Errorf("rules mode requires rules")
		}
	case ModeLLM:
		if gen == nil {
			return fmt.Errorf("llm mode requires a backend")
		}
	default:
		return fmt.Errorf("unknown routing mode: %s", opts.Mode)
	}

	return nil
}
