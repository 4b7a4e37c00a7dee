// Package pipeline implements the staged SQL transformation pipeline.
//
// A request enters the Orchestrator as a question plus an initial SQL query.
// Specialized agents then take turns: the syntax validator normalizes the
// query to the target dialect, the WHERE-clause enhancer adds contextual
// filters inferred from the question, the optimizer applies row-limit and
// projection heuristics, and the column validator grounds every referenced
// column in the schema registry, escalating to LLM-backed regeneration when
// a column cannot be mapped.
//
// Agents are stateless and reusable; all per-request state travels in the
// input data map and the read-only Context.
package pipeline

import (
	"strings"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
)

// Context is the immutable per-request view of the schema world. It is built
// once at request entry and shared read-only by every agent.
type Context struct {
	// Question is the original natural-language question.
	Question string

	// SchemaInfo is the short human-readable schema summary.
	SchemaInfo string

	// DataDictionary is the dictionary blob used to ground LLM prompts.
	DataDictionary string

	// TablesAvailable lists the known table names.
	TablesAvailable []string

	// ColumnsAvailable maps each table name to its ordered column list.
	ColumnsAvailable map[string][]string

	// Dialect is the SQL flavor the final query must conform to.
	Dialect dialect.Dialect
}

// HasTable reports whether the table is known, ignoring case.
func (c *Context) HasTable(name string) bool {
	upper := strings.ToUpper(name)
	for _, t := range c.TablesAvailable {
		if strings.ToUpper(t) == upper {
			return true
		}
	}
	return false
}

// ColumnsOf returns the column list for a table, ignoring case. Nil when the
// table is unknown.
func (c *Context) ColumnsOf(table string) []string {
	upper := strings.ToUpper(table)
	for t, cols := range c.ColumnsAvailable {
		if strings.ToUpper(t) == upper {
			return cols
		}
	}
	return nil
}

// SchemaHasColumn reports whether any known table carries the column.
func (c *Context) SchemaHasColumn(column string) bool {
	upper := strings.ToUpper(column)
	for _, cols := range c.ColumnsAvailable {
		for _, col := range cols {
			if strings.ToUpper(col) == upper {
				return true
			}
		}
	}
	return false
}

// Response is the standard agent result. Data is free-form but carries the
// transformed query under one of the well-known query keys.
type Response struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data"`
	Confidence  float64        `json:"confidence"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// Well-known keys in agent data maps. Later stages prefer later query keys.
const (
	keySQLQuery          = "sql_query"
	keyOriginalQuery     = "original_query"
	keyValidatedQuery    = "validated_query"
	keyEnhancedQuery     = "enhanced_query"
	keyOptimizedQuery    = "optimized_query"
	keyRegeneratedQuery  = "regenerated_query"
	keyRegenerationPrompt = "regeneration_prompt"
	keyNeedsRegeneration = "needs_regeneration"
)

// ProcessingStep records one agent invocation in the pipeline log.
type ProcessingStep struct {
	Agent      string         `json:"agent"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Confidence float64        `json:"confidence,omitempty"`
	Details    map[string]any `json:"details,omitempty"`

	// reported marks steps whose confidence participates in the overall
	// mean; advisory steps keep their confidence in the log but are left out
	// of the mean.
	reported bool
}

// Improvements counts what the pipeline changed.
type Improvements struct {
	SyntaxCorrections  int  `json:"syntax_corrections"`
	WhereEnhancements  int  `json:"where_enhancements"`
	Optimizations      int  `json:"optimizations"`
	ColumnFixes        int  `json:"column_fixes"`
	RegenerationNeeded bool `json:"regeneration_needed"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Success               bool             `json:"success"`
	FinalQuery            string           `json:"final_query"`
	OriginalQuery         string           `json:"original_query"`
	ProcessingLog         []ProcessingStep `json:"processing_log"`
	OverallConfidence     float64          `json:"overall_confidence"`
	RegenerationAttempted bool             `json:"regeneration_attempted"`
	Improvements          Improvements     `json:"improvements"`
}

// clampConfidence bounds a confidence into [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// getString reads a string value from an agent data map.
func getString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// getBool reads a bool value from an agent data map.
func getBool(data map[string]any, key string) bool {
	v, _ := data[key].(bool)
	return v
}

// getStrings reads a string slice from an agent data map.
func getStrings(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// inputQuery resolves the working query for an agent, preferring the given
// keys in order and falling back to sql_query.
func inputQuery(data map[string]any, preferred ...string) string {
	for _, key := range preferred {
		if q := getString(data, key); q != "" {
			return q
		}
	}
	return getString(data, keySQLQuery)
}
