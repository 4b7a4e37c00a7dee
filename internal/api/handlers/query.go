package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
	"github.com/Yerdna1/Text-to-SQL/internal/events"
	"github.com/Yerdna1/Text-to-SQL/internal/llm"
	"github.com/Yerdna1/Text-to-SQL/internal/pipeline"
	"github.com/Yerdna1/Text-to-SQL/internal/warehouse"
)

// ProcessRequest is the payload of POST /api/query/process.
type ProcessRequest struct {
	// Question is the natural-language question. Required.
	Question string `json:"question"`

	// SQL is the initial query. When empty, the parallel generator produces
	// it from the question.
	SQL string `json:"sql,omitempty"`

	// Execute runs the final query against the warehouse when true.
	Execute bool `json:"execute,omitempty"`
}

// ProcessResponse is the result envelope of POST /api/query/process.
type ProcessResponse struct {
	RequestID  string                 `json:"request_id"`
	Result     *pipeline.Result       `json:"result"`
	Generation *llm.ParallelResult    `json:"generation,omitempty"`
	Execution  *warehouse.QueryResult `json:"execution,omitempty"`
	Cached     bool                   `json:"cached,omitempty"`
}

// ProcessQuery answers a natural-language question: generate SQL (when not
// supplied), run it through the agent pipeline, and optionally execute it.
func (s *Service) ProcessQuery(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, status, err := s.process(r.Context(), &req, chimiddleware.GetReqID(r.Context()))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// process is the transport-independent request flow shared by the JSON and
// WebSocket handlers.
func (s *Service) process(ctx context.Context, req *ProcessRequest, requestID string) (*ProcessResponse, int, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	start := time.Now()
	targetDialect := s.Orchestrator.Dialect()

	resp := &ProcessResponse{RequestID: requestID}

	initialSQL := req.SQL
	generatedBy := "caller"
	if initialSQL == "" {
		if s.Generator == nil || len(s.Generator.Providers()) == 0 {
			return nil, http.StatusBadRequest, errNoSQLNoGenerator
		}
		qc, _ := s.Orchestrator.BuildContext(req.Question)
		generation := s.Generator.Generate(ctx, req.Question, qc.SchemaInfo, qc.DataDictionary)
		resp.Generation = generation

		best := generation.BestResult
		if best == nil || !best.Valid() {
			return nil, http.StatusBadGateway, errGenerationFailed
		}
		initialSQL = best.SQLQuery
		generatedBy = best.Provider + "/" + best.Model
	}

	// Deterministic pipeline plus deterministic inputs means the cache can
	// answer repeats outright.
	if cached, err := s.Cache.GetResult(ctx, string(targetDialect), req.Question, initialSQL); err != nil {
		s.Logger.Warn("cache lookup failed", slog.String("error", err.Error()))
	} else if cached != nil {
		resp.Result = cached
		resp.Cached = true
	}

	if resp.Result == nil {
		resp.Result = s.Orchestrator.Process(ctx, req.Question, initialSQL)
		if err := s.Cache.SetResult(ctx, string(targetDialect), req.Question, initialSQL, resp.Result); err != nil {
			s.Logger.Warn("cache store failed", slog.String("error", err.Error()))
		}
	}

	if req.Execute && s.Warehouse != nil && resp.Result.FinalQuery != "" {
		execution, err := s.execute(ctx, req.Question, generatedBy, resp.Result, targetDialect)
		if err != nil {
			s.Logger.Warn("execution failed", slog.String("error", err.Error()))
		} else {
			resp.Execution = execution
		}
	}

	s.publishEvent(ctx, requestID, req.Question, resp.Result, targetDialect, time.Since(start))
	return resp, http.StatusOK, nil
}

// execute runs the final query on the SQLite warehouse, translating from
// DB2 first when needed.
func (s *Service) execute(ctx context.Context, question, generatedBy string, result *pipeline.Result, d dialect.Dialect) (*warehouse.QueryResult, error) {
	query := result.FinalQuery
	translated := false
	if d == dialect.DB2 {
		query, _ = dialect.Translate(query, dialect.SQLite)
		translated = true
	}

	return s.Warehouse.ExecuteQuery(ctx, query, warehouse.Provenance{
		Question:           question,
		GeneratedBy:        generatedBy,
		PipelineConfidence: result.OverallConfidence,
		Dialect:            string(dialect.SQLite),
		Translated:         translated,
	})
}

// publishEvent emits the query event; failures only log.
func (s *Service) publishEvent(ctx context.Context, requestID, question string, result *pipeline.Result, d dialect.Dialect, elapsed time.Duration) {
	if s.Events == nil {
		return
	}
	err := s.Events.PublishQueryEvent(ctx, &events.QueryEvent{
		RequestID:         requestID,
		Question:          question,
		FinalQuery:        result.FinalQuery,
		Dialect:           string(d),
		Success:           result.Success,
		OverallConfidence: result.OverallConfidence,
		Regenerated:       result.RegenerationAttempted,
		DurationMs:        elapsed.Milliseconds(),
	})
	if err != nil {
		s.Logger.Warn("event publish failed", slog.String("error", err.Error()))
	}
}
