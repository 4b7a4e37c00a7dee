package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
)

func optimize(t *testing.T, sql string, d dialect.Dialect) *Response {
	t.Helper()
	agent := NewOptimizer(0, nil)
	return agent.Process(context.Background(), map[string]any{keySQLQuery: sql}, testContext("q", d))
}

func TestOptimizerAddsRowLimitDB2(t *testing.T) {
	resp := optimize(t, "SELECT MARKET FROM PROD_MQT_CONSULTING_PIPELINE", dialect.DB2)

	require.True(t, resp.Success)
	optimized := getString(resp.Data, keyOptimizedQuery)
	assert.True(t, strings.HasSuffix(optimized, "FETCH FIRST 1000 ROWS ONLY"), optimized)
}

func TestOptimizerAddsRowLimitSQLite(t *testing.T) {
	resp := optimize(t, "SELECT MARKET FROM PROD_MQT_CONSULTING_PIPELINE", dialect.SQLite)

	optimized := getString(resp.Data, keyOptimizedQuery)
	assert.True(t, strings.HasSuffix(optimized, "LIMIT 1000"), optimized)
}

func TestOptimizerRespectsConfiguredLimit(t *testing.T) {
	agent := NewOptimizer(50, nil)
	resp := agent.Process(context.Background(),
		map[string]any{keySQLQuery: "SELECT MARKET FROM T"}, testContext("q", dialect.SQLite))

	assert.True(t, strings.HasSuffix(getString(resp.Data, keyOptimizedQuery), "LIMIT 50"))
}

func TestOptimizerSkipsLimitForAggregations(t *testing.T) {
	resp := optimize(t, "SELECT SUM(PPV_AMT) FROM PROD_MQT_CONSULTING_PIPELINE", dialect.DB2)

	optimized := getString(resp.Data, keyOptimizedQuery)
	assert.NotContains(t, optimized, "FETCH FIRST")
}

func TestOptimizerSkipsLimitWhenPresent(t *testing.T) {
	sql := "SELECT MARKET FROM PROD_MQT_CONSULTING_PIPELINE FETCH FIRST 10 ROWS ONLY"
	resp := optimize(t, sql, dialect.DB2)

	assert.Equal(t, sql, getString(resp.Data, keyOptimizedQuery))
}

func TestOptimizerSelectStarIsAdvisoryOnly(t *testing.T) {
	resp := optimize(t, "SELECT * FROM PROD_MQT_CONSULTING_PIPELINE FETCH FIRST 5 ROWS ONLY", dialect.DB2)

	assert.Contains(t, getString(resp.Data, keyOptimizedQuery), "SELECT *")
	optimizations := getStrings(resp.Data, "optimizations")
	found := false
	for _, o := range optimizations {
		if strings.Contains(o, "SELECT *") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestOptimizerConfidence(t *testing.T) {
	fired := optimize(t, "SELECT MARKET FROM PROD_MQT_CONSULTING_PIPELINE", dialect.DB2)
	assert.InDelta(t, 0.9, fired.Confidence, 1e-9)

	quiet := optimize(t, "SELECT SUM(X) FROM T FETCH FIRST 5 ROWS ONLY", dialect.DB2)
	assert.InDelta(t, 0.7, quiet.Confidence, 1e-9)
}
