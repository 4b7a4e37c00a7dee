package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
	"github.com/Yerdna1/Text-to-SQL/internal/llm"
)

// stubProvider is a deterministic llm.Provider for pipeline tests.
type stubProvider struct {
	answer    *llm.Answer
	err       error
	lastDict  string
	connected bool
}

func (s *stubProvider) Kind() llm.Kind  { return llm.KindOllama }
func (s *stubProvider) Model() string   { return "stub" }
func (s *stubProvider) Connected() bool { return s.connected }

func (s *stubProvider) GenerateSQL(ctx context.Context, question, schemaText, dictionaryText string) (*llm.Answer, error) {
	s.lastDict = dictionaryText
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func regenInput(prompt, original string) map[string]any {
	return map[string]any{
		keyRegenerationPrompt: prompt,
		keyOriginalQuery:      original,
	}
}

func TestRegeneratorUsesProvider(t *testing.T) {
	provider := &stubProvider{
		connected: true,
		answer:    &llm.Answer{SQLQuery: "SELECT OPPTY_ID FROM PROD_MQT_CONSULTING_PIPELINE", Confidence: 0.95},
	}
	agent := NewRegenerator(provider, nil)

	resp := agent.Process(context.Background(),
		regenInput("fix the columns", "SELECT FOO FROM PROD_MQT_CONSULTING_PIPELINE"),
		testContext("q", dialect.DB2))

	require.True(t, resp.Success)
	assert.Equal(t, "SELECT OPPTY_ID FROM PROD_MQT_CONSULTING_PIPELINE", getString(resp.Data, keyRegeneratedQuery))
	// Provider confidence is capped.
	assert.InDelta(t, 0.8, resp.Confidence, 1e-9)
	// The repair prompt rides along with the dictionary blob.
	assert.Contains(t, provider.lastDict, "fix the columns")
}

func TestRegeneratorFallsBackOnProviderError(t *testing.T) {
	provider := &stubProvider{
		connected: true,
		err:       &llm.ProviderError{Provider: "ollama", Model: "stub", Reason: llm.ReasonNetwork, Err: errors.New("boom")},
	}
	agent := NewRegenerator(provider, nil)

	resp := agent.Process(context.Background(),
		regenInput("prompt", "SELECT OPPORTUNITY_ID, CLIENT_NAME FROM PROD_MQT_CONSULTING_PIPELINE"),
		testContext("q", dialect.DB2))

	require.True(t, resp.Success)
	regenerated := getString(resp.Data, keyRegeneratedQuery)
	assert.Contains(t, regenerated, "OPPTY_ID")
	assert.Contains(t, regenerated, "CUSTOMER_NAME")
	assert.InDelta(t, 0.6, resp.Confidence, 1e-9)
}

func TestRegeneratorFallsBackWithoutProvider(t *testing.T) {
	agent := NewRegenerator(nil, nil)

	resp := agent.Process(context.Background(),
		regenInput("prompt", "SELECT PIPELINE_AMT FROM PROD_MQT_CONSULTING_PIPELINE"),
		testContext("q", dialect.DB2))

	require.True(t, resp.Success)
	assert.Contains(t, getString(resp.Data, keyRegeneratedQuery), "PIPELINE_VALUE")
	assert.InDelta(t, 0.6, resp.Confidence, 1e-9)
}

func TestRegeneratorRequiresPrompt(t *testing.T) {
	agent := NewRegenerator(nil, nil)
	resp := agent.Process(context.Background(), map[string]any{}, testContext("q", dialect.DB2))
	assert.False(t, resp.Success)
}

func TestFallbackSubstitutionsStayWithinSynonyms(t *testing.T) {
	for standard, replacement := range fallbackSubstitutions {
		variants, ok := columnSynonyms[standard]
		require.True(t, ok, standard)
		assert.Contains(t, variants, replacement, standard)
	}
}
