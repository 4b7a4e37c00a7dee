package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading whitespace", "  \n```json\n{}\n```\n", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.in))
		})
	}
}

func TestParseAnswer(t *testing.T) {
	raw := "```json\n{\"sql_query\": \"SELECT 1\", \"explanation\": \"trivial\", \"tables_used\": [\"T\"], \"confidence\": 0.9}\n```"

	a, err := parseAnswer(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", a.SQLQuery)
	assert.Equal(t, "trivial", a.Explanation)
	assert.Equal(t, []string{"T"}, a.TablesUsed)
	assert.InDelta(t, 0.9, a.Confidence, 1e-9)
}

func TestParseAnswerClampsConfidence(t *testing.T) {
	a, err := parseAnswer(`{"sql_query": "SELECT 1", "confidence": 4.2}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Confidence)

	a, err = parseAnswer(`{"sql_query": "SELECT 1", "confidence": -2}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Confidence)
}

func TestParseAnswerRejectsGarbage(t *testing.T) {
	_, err := parseAnswer("here is your query: SELECT 1")
	assert.Error(t, err)

	_, err = parseAnswer(`{"explanation": "no sql"}`)
	assert.Error(t, err)
}
