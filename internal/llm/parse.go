package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripCodeFences removes a leading ```json / ``` fence pair if present.
// Backends routinely wrap the JSON object despite being told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// parseAnswer parses a backend response into an Answer, tolerating code
// fences and clamping confidence into [0, 1].
func parseAnswer(raw string) (*Answer, error) {
	cleaned := stripCodeFences(raw)

	var a Answer
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return nil, fmt.Errorf("response is not a JSON answer object: %w", err)
	}
	if strings.TrimSpace(a.SQLQuery) == "" {
		return nil, fmt.Errorf("response JSON carries no sql_query")
	}

	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return &a, nil
}
