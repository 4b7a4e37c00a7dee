package warehouse

import "encoding/json"

// ColumnMeta describes one column of a result set.
type ColumnMeta struct {
	// Name is the column name as returned by the driver.
	Name string `json:"name"`
	// Type is the declared database type, when known.
	Type string `json:"type,omitempty"`
}

// Provenance records where a result's query came from, so a caller can
// reconstruct how the answer was produced.
type Provenance struct {
	// Question is the natural-language question that started the request.
	Question string `json:"question,omitempty"`
	// GeneratedBy names the provider/model that generated the initial SQL.
	GeneratedBy string `json:"generated_by,omitempty"`
	// PipelineConfidence is the orchestrator's overall confidence.
	PipelineConfidence float64 `json:"pipeline_confidence,omitempty"`
	// Dialect is the dialect the executed query conforms to.
	Dialect string `json:"dialect,omitempty"`
	// Translated reports whether the dialect translator rewrote the final
	// query for execution.
	Translated bool `json:"translated,omitempty"`
}

// QueryResult is the outcome of executing one SELECT against the warehouse.
type QueryResult struct {
	Columns         []ColumnMeta     `json:"columns"`
	Data            []map[string]any `json:"data"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	Provenance      Provenance       `json:"provenance"`
}

// ToJSON serializes the result.
func (r *QueryResult) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
