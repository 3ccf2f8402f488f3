package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRequestInsertsTextVerbatim(t *testing.T) {
	e := NewEngine()

	out, err := e.RenderRequest("Q: {{request}}", `a & b "quoted" <tag> {{not a slot}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, `Q: a & b "quoted" <tag> {{not a slot}}`, out)
}

func TestRenderRequestExtraData(t *testing.T) {
	e := NewEngine()

	out, err := e.RenderRequest("{{join experts \", \"}} -> {{request}}", "hi", map[string]interface{}{
		"experts": []string{"insurance", "tech"},
	})
	require.NoError(t, err)
	assert.Equal(t, "insurance, tech -> hi", out)
}

func TestNewEngineTwiceDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		NewEngine()
		NewEngine()
	})
}

func TestCountRequestSlots(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name string
		tmpl string
		want int
	}{
		{name: "none", tmpl: "no slot here", want: 0},
		{name: "one", tmpl: "answer {{request}} please", want: 1},
		{name: "triple stash", tmpl: "answer {{{request}}}", want: 1},
		{name: "two", tmpl: "{{request}} and {{request}}", want: 2},
		{name: "other var", tmpl: "{{question}}", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CountRequestSlots(tt.tmpl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTemplate(t *testing.T) {
	e := NewEngine()

	assert.NoError(t, e.ValidateTemplate("Hello {{request}}"))
	assert.Error(t, e.ValidateTemplate("Hello {{#if request}}"))
}

func TestRenderCachesCompiledTemplates(t *testing.T) {
	e := NewEngine()

	_, err := e.RenderRequest("cached {{request}}", "x", nil)
	require.NoError(t, err)

	e.mu.RLock()
	_, ok := e.cache["cached {{request}}"]
	e.mu.RUnlock()
	assert.True(t, ok)
}
