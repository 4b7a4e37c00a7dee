package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
)

// OptimizerName is the log name of the optimization stage.
const OptimizerName = "QueryOptimizer"

// DefaultRowLimit bounds unlimited non-aggregating queries.
const DefaultRowLimit = 1000

// Optimizer applies tactical rewrites: a row limit for unbounded
// non-aggregating queries plus advisory notes on projection, join, and
// filter usage. It fails only when no SQL query is supplied.
type Optimizer struct {
	rowLimit int
	logger   *slog.Logger
}

// NewOptimizer returns the optimization agent. A non-positive rowLimit
// falls back to DefaultRowLimit.
func NewOptimizer(rowLimit int, logger *slog.Logger) *Optimizer {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{rowLimit: rowLimit, logger: logger}
}

// Name implements Agent.
func (a *Optimizer) Name() string { return OptimizerName }

var aggregationFunctions = []string{"SUM(", "COUNT(", "AVG(", "MAX(", "MIN("}

// Process implements Agent.
func (a *Optimizer) Process(ctx context.Context, input map[string]any, qc *Context) *Response {
	sqlQuery := inputQuery(input, keyEnhancedQuery)
	if sqlQuery == "" {
		return &Response{Success: false, Message: "No SQL query provided", Data: map[string]any{}}
	}

	var optimizations []string
	optimized := sqlQuery
	upper := strings.ToUpper(dialect.StripLiteralsAndComments(optimized))

	logStep(a.logger, a.Name(), "analyzing table usage")
	if strings.Contains(optimized, "PROD_MQT") {
		optimizations = append(optimizations, "Using MQT (Materialized Query Tables) for optimal performance")
	}

	logStep(a.logger, a.Name(), "analyzing SELECT clause efficiency")
	if strings.Contains(upper, "SELECT *") {
		optimizations = append(optimizations, "Consider selecting specific columns instead of SELECT *")
	}

	logStep(a.logger, a.Name(), "checking for result set limitations")
	limitAdded := false
	if !strings.Contains(upper, "FETCH FIRST") && !strings.Contains(upper, "LIMIT") {
		if !hasAggregation(upper) {
			optimized = optimized + " " + qc.Dialect.LimitClause(a.rowLimit)
			optimizations = append(optimizations, "Added row limit to prevent large result sets")
			limitAdded = true
		}
	}

	logStep(a.logger, a.Name(), "checking filter and join usage")
	if strings.Contains(upper, "WHERE") {
		optimizations = append(optimizations, "WHERE clause present - ensure indexes on filter columns")
	}
	if strings.Contains(upper, " JOIN ") {
		optimizations = append(optimizations, "JOINs detected - verify proper join conditions and indexes")
	}

	confidence := 0.7
	if len(optimizations) > 0 {
		confidence = 0.9
	}

	return &Response{
		Success:    true,
		Message:    fmt.Sprintf("Query optimization complete - %d improvements applied", len(optimizations)),
		Confidence: confidence,
		Data: map[string]any{
			keyOriginalQuery:  sqlQuery,
			keyOptimizedQuery: optimized,
			"optimizations":   optimizations,
			"step_details": map[string]any{
				"limit_added":         limitAdded,
				"total_optimizations": len(optimizations),
			},
		},
	}
}

func hasAggregation(upperQuery string) bool {
	for _, fn := range aggregationFunctions {
		if strings.Contains(upperQuery, fn) {
			return true
		}
	}
	return false
}
