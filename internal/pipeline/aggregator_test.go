package pipeline

import (
	"errors"
	"testing"

	"github.com/alexchuang650730/aicore0624-sub006/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSingle(t *testing.T) {
	d := &router.Decision{ExpertIDs: []string{"tech"}, PathTaken: router.PathFast}

	answer, err := Aggregate(d, []ExpertResponse{{ExpertID: "tech", Text: "【Tech】\nhello"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "【Tech】\nhello", answer.Text)
	assert.Equal(t, []string{"tech"}, answer.ExpertIDs)
}

func TestAggregateMany(t *testing.T) {
	d := &router.Decision{ExpertIDs: []string{"a", "b"}}

	answer, err := Aggregate(d, []ExpertResponse{
		{ExpertID: "a", Text: "A"},
		{ExpertID: "b", Text: "B", Err: errors.New("x")},
	}, "note.")
	require.NoError(t, err)
	assert.Equal(t, "A\n\nB\n\nnote.", answer.Text)
	assert.Equal(t, []string{"b"}, answer.Failed)
	assert.False(t, answer.AllFailed())

	d.ExpertIDs[0] = "mutated"
	assert.Equal(t, "a", answer.ExpertIDs[0], "expert ids are copied")
}

func TestAggregateContractViolations(t *testing.T) {
	tests := []struct {
		name      string
		ids       []string
		responses []ExpertResponse
	}{
		{name: "no responses", ids: []string{"a"}, responses: nil},
		{name: "missing response", ids: []string{"a", "b"}, responses: []ExpertResponse{{ExpertID: "a"}}},
		{name: "wrong order", ids: []string{"a", "b"}, responses: []ExpertResponse{{ExpertID: "b"}, {ExpertID: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(&router.Decision{ExpertIDs: tt.ids}, tt.responses, "")
			assert.ErrorIs(t, err, ErrAggregation)
		})
	}
}
