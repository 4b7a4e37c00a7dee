package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
)

func pipelineOnlyContext(question string, columns []string) *Context {
	return &Context{
		Question:         question,
		TablesAvailable:  []string{"PROD_MQT_CONSULTING_PIPELINE"},
		ColumnsAvailable: map[string][]string{"PROD_MQT_CONSULTING_PIPELINE": columns},
		Dialect:          dialect.DB2,
	}
}

func validateColumns(t *testing.T, sql string, qc *Context) *Response {
	t.Helper()
	agent := NewColumnValidator(nil)
	return agent.Process(context.Background(), map[string]any{keySQLQuery: sql}, qc)
}

func TestColumnValidatorAllColumnsKnown(t *testing.T) {
	qc := pipelineOnlyContext("q", []string{"MARKET", "OPPTY_ID", "SALES_STAGE"})

	resp := validateColumns(t,
		"SELECT MARKET, COUNT(OPPTY_ID) FROM PROD_MQT_CONSULTING_PIPELINE WHERE SALES_STAGE = 'Won' GROUP BY MARKET", qc)

	require.True(t, resp.Success)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.False(t, getBool(resp.Data, keyNeedsRegeneration))
	assert.Empty(t, getStrings(resp.Data, "substitutions_made"))
}

func TestColumnValidatorSubstitutesSynonym(t *testing.T) {
	qc := pipelineOnlyContext("won deals by market", []string{"MARKET", "OPPTY_ID", "SALES_STAGE"})

	resp := validateColumns(t,
		"SELECT MARKET, COUNT(OPPORTUNITY_ID) FROM PROD_MQT_CONSULTING_PIPELINE WHERE SALES_STAGE = 'Won' GROUP BY MARKET", qc)

	require.True(t, resp.Success)
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9)

	validated := getString(resp.Data, keyValidatedQuery)
	assert.Contains(t, validated, "OPPTY_ID")
	assert.NotContains(t, validated, "OPPORTUNITY_ID")
	assert.Equal(t, []string{"OPPORTUNITY_ID -> OPPTY_ID"}, getStrings(resp.Data, "substitutions_made"))
	assert.False(t, getBool(resp.Data, keyNeedsRegeneration))
}

func TestColumnValidatorSubstitutesQualifiedReference(t *testing.T) {
	qc := pipelineOnlyContext("q", []string{"MARKET", "OPPTY_ID"})

	resp := validateColumns(t,
		"SELECT p.MARKET, p.OPPORTUNITY_ID FROM PROD_MQT_CONSULTING_PIPELINE p", qc)

	require.True(t, resp.Success)
	validated := getString(resp.Data, keyValidatedQuery)
	assert.Contains(t, validated, "p.OPPTY_ID")
	assert.NotContains(t, validated, "OPPORTUNITY_ID")
}

func TestColumnValidatorUnmappableTriggersRegeneration(t *testing.T) {
	qc := pipelineOnlyContext("q", []string{"MARKET", "OPPTY_ID", "SALES_STAGE"})

	resp := validateColumns(t,
		"SELECT MARKET, COUNT(FOO_XYZ) FROM PROD_MQT_CONSULTING_PIPELINE GROUP BY MARKET", qc)

	require.False(t, resp.Success)
	assert.True(t, getBool(resp.Data, keyNeedsRegeneration))
	assert.InDelta(t, 0.3, resp.Confidence, 1e-9)

	prompt := getString(resp.Data, keyRegenerationPrompt)
	assert.Contains(t, prompt, "FOO_XYZ")
	assert.Contains(t, prompt, "MARKET")
}

func TestColumnValidatorCTEPassThrough(t *testing.T) {
	qc := pipelineOnlyContext("q", []string{"MARKET", "PPV_AMT"})
	cte := "WITH totals AS (SELECT MARKET, SUM(PPV_AMT) AS TOTAL FROM PROD_MQT_CONSULTING_PIPELINE GROUP BY MARKET) SELECT TOTAL FROM totals"

	resp := validateColumns(t, cte, qc)

	require.True(t, resp.Success)
	assert.Equal(t, cte, getString(resp.Data, keyValidatedQuery))
	assert.False(t, getBool(resp.Data, keyNeedsRegeneration))
}

func TestColumnValidatorIgnoresUnknownTables(t *testing.T) {
	qc := pipelineOnlyContext("q", []string{"MARKET"})

	resp := validateColumns(t, "SELECT x.WHATEVER FROM EXTERNAL_TABLE x", qc)

	require.True(t, resp.Success)
	assert.False(t, getBool(resp.Data, keyNeedsRegeneration))
}

func TestColumnValidatorSubstringSimilarity(t *testing.T) {
	qc := pipelineOnlyContext("q", []string{"MARKET", "OPEN_PIPELINE_AMT"})

	resp := validateColumns(t,
		"SELECT MARKET, SUM(PIPELINE_AMT) FROM PROD_MQT_CONSULTING_PIPELINE GROUP BY MARKET", qc)

	require.True(t, resp.Success)
	assert.Contains(t, getString(resp.Data, keyValidatedQuery), "OPEN_PIPELINE_AMT")
}

func TestExtractColumnReferences(t *testing.T) {
	refs := extractColumnReferences(
		"SELECT p.MARKET, SUM(p.PPV_AMT) FROM PROD_MQT_CONSULTING_PIPELINE p WHERE SALES_STAGE = 'Won' AND YEAR_NUM = 2026 GROUP BY GEOGRAPHY, SECTOR")

	cols := refs["PROD_MQT_CONSULTING_PIPELINE"]
	assert.Contains(t, cols, "MARKET")
	assert.Contains(t, cols, "PPV_AMT")
	assert.Contains(t, cols, "SALES_STAGE")
	assert.Contains(t, cols, "YEAR_NUM")
	assert.Contains(t, cols, "GEOGRAPHY")
	assert.Contains(t, cols, "SECTOR")
}

func TestExtractColumnReferencesSkipsCTENames(t *testing.T) {
	refs := extractColumnReferences(
		"WITH t AS (SELECT MARKET FROM PROD_MQT_CONSULTING_PIPELINE) SELECT t.MARKET FROM t")

	_, hasCTE := refs["T"]
	assert.False(t, hasCTE)
}

func TestFindSimilarColumn(t *testing.T) {
	available := []string{"OPPTY_ID", "Market", "CUSTOMER_NAME", "OPEN_PIPELINE_AMT"}

	assert.Equal(t, "Market", findSimilarColumn("MARKET", available))
	assert.Equal(t, "OPPTY_ID", findSimilarColumn("OPPORTUNITY_ID", available))
	assert.Equal(t, "CUSTOMER_NAME", findSimilarColumn("CLIENT_NAME", available))
	// Reverse synonym direction: a variant resolves back to the standard.
	assert.Equal(t, "CLIENT_NAME", findSimilarColumn("ACCOUNT_NAME", []string{"CLIENT_NAME", "MARKET"}))
	// Substring containment needs both sides longer than three characters.
	assert.Equal(t, "OPEN_PIPELINE_AMT", findSimilarColumn("PIPELINE_AMT", available))
	assert.Equal(t, "", findSimilarColumn("ZZZ", available))
	assert.Equal(t, "", findSimilarColumn("UNRELATED_THING", available))
}
