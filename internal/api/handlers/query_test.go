package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
	"github.com/Yerdna1/Text-to-SQL/internal/pipeline"
	"github.com/Yerdna1/Text-to-SQL/internal/warehouse"
)

func testService(t *testing.T, d dialect.Dialect) *Service {
	t.Helper()

	wh, err := warehouse.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })

	_, err = wh.DB().Exec(`
		CREATE TABLE PROD_MQT_CONSULTING_PIPELINE (
			MARKET TEXT, SALES_STAGE TEXT, OPPTY_ID TEXT, PPV_AMT REAL,
			SNAPSHOT_LEVEL TEXT, WEEK INTEGER, YEAR INTEGER, QUARTER INTEGER
		)`)
	require.NoError(t, err)
	_, err = wh.DB().Exec(`
		INSERT INTO PROD_MQT_CONSULTING_PIPELINE VALUES
			('Americas', 'Qualify', 'OP-1', 100.0, 'W', 30, 2026, 3),
			('EMEA', 'Propose', 'OP-2', 200.0, 'W', 30, 2026, 3)`)
	require.NoError(t, err)

	reg, err := wh.LoadRegistry(context.Background())
	require.NoError(t, err)

	orchestrator := pipeline.New(pipeline.Config{Dialect: d, Registry: reg})

	service := NewService(orchestrator, nil)
	service.Warehouse = wh
	return service
}

func postProcess(t *testing.T, s *Service, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/query/process", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ProcessQuery(rec, req)
	return rec
}

func TestProcessQueryValidatesAndTransforms(t *testing.T) {
	s := testService(t, dialect.DB2)

	rec := postProcess(t, s, ProcessRequest{
		Question: "top 10 pipeline rows",
		SQL:      "SELECT * FROM PROD_MQT_CONSULTING_PIPELINE LIMIT 10",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Success)
	assert.Contains(t, resp.Result.FinalQuery, "FETCH FIRST 10 ROWS ONLY")
	assert.NotEmpty(t, resp.RequestID)
	assert.Nil(t, resp.Execution)
}

func TestProcessQueryExecutesAgainstWarehouse(t *testing.T) {
	s := testService(t, dialect.SQLite)

	rec := postProcess(t, s, ProcessRequest{
		Question: "pipeline value by market",
		SQL:      "SELECT MARKET, SUM(PPV_AMT) AS TOTAL FROM PROD_MQT_CONSULTING_PIPELINE GROUP BY MARKET",
		Execute:  true,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Execution)
	assert.Equal(t, 2, resp.Execution.RowCount)
	assert.Equal(t, "pipeline value by market", resp.Execution.Provenance.Question)
}

func TestProcessQueryTranslatesDB2ForExecution(t *testing.T) {
	s := testService(t, dialect.DB2)

	rec := postProcess(t, s, ProcessRequest{
		Question: "pipeline rows",
		SQL:      "SELECT MARKET FROM PROD_MQT_CONSULTING_PIPELINE WHERE SNAPSHOT_LEVEL = 'W' FETCH FIRST 1 ROWS ONLY",
		Execute:  true,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The DB2 final query is translated to SQLite for execution.
	require.NotNil(t, resp.Execution)
	assert.True(t, resp.Execution.Provenance.Translated)
	assert.Equal(t, 1, resp.Execution.RowCount)
}

func TestProcessQueryRequiresQuestion(t *testing.T) {
	s := testService(t, dialect.DB2)

	rec := postProcess(t, s, ProcessRequest{SQL: "SELECT 1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessQueryWithoutSQLNeedsGenerator(t *testing.T) {
	s := testService(t, dialect.DB2)

	rec := postProcess(t, s, ProcessRequest{Question: "pipeline by market"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessQueryRejectsBadJSON(t *testing.T) {
	s := testService(t, dialect.DB2)

	req := httptest.NewRequest(http.MethodPost, "/api/query/process", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	s.ProcessQuery(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := testService(t, dialect.DB2)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, statusHealthy, health.Status)
	assert.Equal(t, statusHealthy, health.Checks["warehouse"])
	assert.Equal(t, "disabled", health.Checks["providers"])
}

func TestProvidersEndpointWithoutGenerator(t *testing.T) {
	s := testService(t, dialect.DB2)

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	rec := httptest.NewRecorder()
	s.Providers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"providers": []}`, rec.Body.String())
}

func TestSchemaEndpoint(t *testing.T) {
	s := testService(t, dialect.DB2)

	req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	rec := httptest.NewRecorder()
	s.Schema(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Dialect        string   `json:"dialect"`
		Tables         []string `json:"tables"`
		DefaultCatalog bool     `json:"default_catalog"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "DB2", payload.Dialect)
	assert.Contains(t, payload.Tables, "PROD_MQT_CONSULTING_PIPELINE")
	assert.False(t, payload.DefaultCatalog)
}
