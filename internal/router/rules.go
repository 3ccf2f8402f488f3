package router

import (
	"context"
	"fmt"

	"github.com/alexchuang650730/aicore0624-sub006/internal/eval/cel"
	"go.uber.org/zap"
)

// Rule represents a CEL-based routing rule
type Rule struct {
	Condition string `json:"condition" yaml:"condition"`
	Target    string `json:"target" yaml:"target"`
}

// RuleClassifier evaluates every rule against the request; each matching
// rule contributes its target.
type RuleClassifier struct {
	rules     []Rule
	evaluator *cel.Evaluator
	logger    *zap.Logger
}

// NewRuleClassifier validates rules and creates a classifier.
func NewRuleClassifier(rules []Rule, evaluator *cel.Evaluator, logger *zap.Logger) (*RuleClassifier, error) {
	for i, rule := range rules {
		if err := evaluator.ValidateExpression(rule.Condition); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}

	return &RuleClassifier{
		rules:     append([]Rule(nil), rules...),
		evaluator: evaluator,
		logger:    logger,
	}, nil
}

// Classify implements Classifier.
func (c *RuleClassifier) Classify(ctx context.Context, text string) ([]string, error) {
	var targets []string

	for i, rule := range c.rules {
		matched, err := c.evaluator.Match(ctx, rule.Condition, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("rule evaluation error",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			// Continue to next rule on error
			continue
		}

		if matched {
			c.logger.Debug("rule matched",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.String("target", rule.Target),
			)
			targets = append(targets, rule.Target)
		}
	}

	return targets, nil
}

var _ Classifier = (*RuleClassifier)(nil)
