package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sameShapeAnswer(confidence float64, explanation string) *Answer {
	return &Answer{
		SQLQuery:    "SELECT MARKET, SUM(PPV_AMT) FROM PROD_MQT_CONSULTING_PIPELINE WHERE SALES_STAGE = 'Qualify' GROUP BY MARKET",
		Explanation: explanation,
		Confidence:  confidence,
	}
}

func newTestGenerator(providers []Provider, preferred []Kind) *Generator {
	return NewGeneratorWithProviders(providers, preferred, nil)
}

func TestGeneratorDropsDisconnectedProviders(t *testing.T) {
	g := newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "a", connected: true, answer: sameShapeAnswer(0.8, "x")},
		&mockProvider{kind: KindOpenAI, model: "b", connected: false},
	}, nil)

	assert.Len(t, g.Providers(), 1)
}

func TestGenerateConsensusHigh(t *testing.T) {
	g := newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "m1", connected: true, answer: sameShapeAnswer(0.9, "first explanation")},
		&mockProvider{kind: KindOpenAI, model: "m2", connected: true, answer: sameShapeAnswer(0.8, "second explanation")},
		&mockProvider{kind: KindDeepSeek, model: "m3", connected: true, answer: sameShapeAnswer(0.85, "third explanation")},
	}, nil)

	result := g.Generate(context.Background(), "pipeline by market", "", "")

	require.Len(t, result.Results, 3)
	assert.Equal(t, "compared", result.Comparison.Status)
	assert.True(t, result.Comparison.SelectMatch)
	assert.True(t, result.Comparison.FromMatch)
	assert.True(t, result.Comparison.WhereSimilarity)
	assert.Equal(t, ConfidenceHigh, result.Comparison.ConfidenceLevel)

	// Highest confidence wins with otherwise comparable answers.
	require.NotNil(t, result.BestResult)
	assert.Equal(t, string(KindOllama), result.BestResult.Provider)
}

func TestGenerateConsensusMediumAndLow(t *testing.T) {
	differentWhere := &Answer{
		SQLQuery:   "SELECT MARKET, SUM(PPV_AMT) FROM PROD_MQT_CONSULTING_PIPELINE WHERE GEOGRAPHY = 'EMEA' AND SNAPSHOT_LEVEL = 'W' GROUP BY MARKET",
		Confidence: 0.7,
	}
	g := newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "m1", connected: true, answer: sameShapeAnswer(0.9, "")},
		&mockProvider{kind: KindOpenAI, model: "m2", connected: true, answer: differentWhere},
	}, nil)

	result := g.Generate(context.Background(), "q", "", "")
	assert.Equal(t, ConfidenceMedium, result.Comparison.ConfidenceLevel)

	disjoint := &Answer{SQLQuery: "SELECT REVENUE_AMT FROM PROD_MQT_CONSULTING_REVENUE_ACTUALS WHERE MONTH = 7", Confidence: 0.5}
	g = newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "m1", connected: true, answer: sameShapeAnswer(0.9, "")},
		&mockProvider{kind: KindOpenAI, model: "m2", connected: true, answer: disjoint},
	}, nil)

	result = g.Generate(context.Background(), "q", "", "")
	assert.Equal(t, ConfidenceLow, result.Comparison.ConfidenceLevel)
}

func TestGenerateFewerThanTwoValidIsLow(t *testing.T) {
	g := newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "m1", connected: true, answer: sameShapeAnswer(0.9, "")},
		&mockProvider{kind: KindOpenAI, model: "m2", connected: true,
			err: &ProviderError{Provider: "openai", Model: "m2", Reason: ReasonNetwork}},
	}, nil)

	result := g.Generate(context.Background(), "q", "", "")

	assert.Equal(t, "insufficient_results", result.Comparison.Status)
	assert.Equal(t, ConfidenceLow, result.Comparison.ConfidenceLevel)

	// Errored results stay in the set but never win selection.
	require.Len(t, result.Results, 2)
	assert.NotEmpty(t, result.Results[1].Err)
	assert.Equal(t, string(KindOllama), result.BestResult.Provider)
}

func TestGenerateAllErrorsReturnsFirstError(t *testing.T) {
	g := newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "m1", connected: true,
			err: &ProviderError{Provider: "ollama", Model: "m1", Reason: ReasonNetwork}},
		&mockProvider{kind: KindOpenAI, model: "m2", connected: true,
			err: &ProviderError{Provider: "openai", Model: "m2", Reason: ReasonParse}},
	}, nil)

	result := g.Generate(context.Background(), "q", "", "")

	require.NotNil(t, result.BestResult)
	assert.Equal(t, string(KindOllama), result.BestResult.Provider)
	assert.NotEmpty(t, result.BestResult.Err)
}

func TestPreferredProviderBonusBreaksNearTies(t *testing.T) {
	g := newTestGenerator([]Provider{
		&mockProvider{kind: KindOllama, model: "m1", connected: true, answer: sameShapeAnswer(0.8, "")},
		&mockProvider{kind: KindOpenAI, model: "m2", connected: true, answer: sameShapeAnswer(0.82, "")},
	}, []Kind{KindOllama})

	result := g.Generate(context.Background(), "q", "", "")

	// 0.8·100 + 5 > 0.82·100, so the preferred provider wins.
	assert.Equal(t, string(KindOllama), result.BestResult.Provider)
}

func TestScoringDeterministicUnderPermutation(t *testing.T) {
	a := &mockProvider{kind: KindOllama, model: "m1", connected: true, answer: sameShapeAnswer(0.9, "long explanation about the query approach")}
	b := &mockProvider{kind: KindOpenAI, model: "m2", connected: true, answer: sameShapeAnswer(0.7, "short")}
	c := &mockProvider{kind: KindDeepSeek, model: "m3", connected: true, answer: sameShapeAnswer(0.8, "medium explanation")}

	first := newTestGenerator([]Provider{a, b, c}, nil).Generate(context.Background(), "q", "", "")
	second := newTestGenerator([]Provider{c, b, a}, nil).Generate(context.Background(), "q", "", "")

	assert.Equal(t, first.Comparison.ConfidenceLevel, second.Comparison.ConfidenceLevel)
	assert.Equal(t, first.BestResult.Provider, second.BestResult.Provider)
	assert.Equal(t, first.BestResult.SQLQuery, second.BestResult.SQLQuery)
}

func TestScoreMonotonicity(t *testing.T) {
	g := newTestGenerator(nil, nil)

	existing := []*Answer{
		{SQLQuery: "SELECT 1", Confidence: 0.6, Provider: "a"},
		{SQLQuery: "SELECT 2", Confidence: 0.7, Provider: "b"},
	}
	assert.Equal(t, "b", g.selectBest(existing).Provider)

	higher := &Answer{SQLQuery: "SELECT 3", Confidence: 0.95, Provider: "c"}
	assert.Equal(t, "c", g.selectBest(append(existing, higher)).Provider)
}

func TestDisconnectedClientRefusesGeneration(t *testing.T) {
	c := &Client{kind: KindOpenAI, modelName: "gpt-4o"}

	_, err := c.GenerateSQL(context.Background(), "q", "", "")
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDisconnected, pe.Reason)
}
