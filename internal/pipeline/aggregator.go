package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/router"
)

// DefaultSynthesisNote is appended when more than one expert contributed.
const DefaultSynthesisNote = "This answer combines the perspectives of multiple experts; consider each section together for a complete picture."

// SectionSeparator joins expert sections.
const SectionSeparator = "\n\n"

var (
	// ErrAggregation reports responses that do not line up with the decision.
	ErrAggregation = errors.New("aggregation contract violated")

	// ErrAllExpertsFailed is returned with the answer when no expert succeeded.
	ErrAllExpertsFailed = errors.New("all experts failed")
)

// FinalAnswer is the user-facing result of one request.
type FinalAnswer struct {
	Text        string        `json:"text"`
	ExpertIDs   []string      `json:"expert_ids"`
	Failed      []string      `json:"failed,omitempty"`
	Synthesized bool          `json:"synthesized"`
	PathTaken   string        `json:"path_taken"`
	Duration    time.Duration `json:"duration"`
}

// AllFailed reports whether every expert failed.
func (a *FinalAnswer) AllFailed() bool {
	return len(a.ExpertIDs) > 0 && len(a.Failed) == len(a.ExpertIDs)
}

// Aggregate combines responses into one answer. A single response passes
// through unchanged; several are joined in order and followed by note. An
// empty note uses DefaultSynthesisNote.
func Aggregate(decision *router.Decision, responses []ExpertResponse, note string) (*FinalAnswer, error) {
	if len(responses) == 0 || len(responses) != len(decision.ExpertIDs) {
		return nil, fmt.Errorf("%w: %d responses for %d experts",
			ErrAggregation, len(responses), len(decision.ExpertIDs))
	}

	answer := &FinalAnswer{
		ExpertIDs: slices.Clone(decision.ExpertIDs),
		PathTaken: decision.PathTaken,
	}

	for i, resp := range responses {
		if resp.ExpertID != decision.ExpertIDs[i] {
			return nil, fmt.Errorf("%w: response %d is from %q, want %q",
				ErrAggregation, i, resp.ExpertID, decision.ExpertIDs[i])
		}
		if resp.Failed() {
			answer.Failed = append(answer.Failed, resp.ExpertID)
		}
	}

	if len(responses) == 1 {
		answer.Text = responses[0].Text
		return answer, nil
	}

	if note == "" {
		note = DefaultSynthesisNote
	}

	answer.Text = joinSections(responses) + SectionSeparator + note
	return answer, nil
}

func joinSections(responses []ExpertResponse) string {
	sections := make([]string, len(responses))
	for i, resp := range responses {
		sections[i] = resp.Text
	}
	return strings.Join(sections, SectionSeparator)
}
