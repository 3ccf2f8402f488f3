package router

import (
	"context"
	"strings"

	"github.com/alexchuang650730/aicore0624-sub006/internal/expert"
)

type keywordEntry struct {
	id       string
	keywords []string
}

// KeywordClassifier selects every expert that has at least one keyword
// occurring as a case-sensitive substring of the request text.
type KeywordClassifier struct {
	entries []keywordEntry
}

// NewKeywordClassifier builds a classifier over catalog in declaration order.
func NewKeywordClassifier(catalog *expert.Catalog) *KeywordClassifier {
	defs := catalog.Definitions()
	entries := make([]keywordEntry, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, keywordEntry{id: def.ID, keywords: def.Keywords})
	}
	return &KeywordClassifier{entries: entries}
}

// Match returns the matching expert ids in catalog order, without duplicates.
// It does no I/O and is safe for concurrent use.
func (k *KeywordClassifier) Match(text string) []string {
	var ids []string
	seen := make(map[string]bool, len(k.entries))

	for _, e := range k.entries {
		if seen[e.id] {
			continue
		}
		for _, kw := range e.keywords {
			if strings.Contains(text, kw) {
				ids = append(ids, e.id)
				seen[e.id] = true
				break
			}
		}
	}

	return ids
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(_ context.Context, text string) ([]string, error) {
	return k.Match(text), nil
}

var _ Classifier = (*KeywordClassifier)(nil)
