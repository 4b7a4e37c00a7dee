package pipeline

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/Yerdna1/Text-to-SQL/internal/llm"
)

// RegeneratorName is the log name of the SQL regeneration stage.
const RegeneratorName = "SQLRegeneration"

// regenerationConfidenceCap bounds the confidence a regenerated query can
// claim, whatever the provider says about itself.
const regenerationConfidenceCap = 0.8

// fallbackConfidence is claimed by the substitution-table rewrite.
const fallbackConfidence = 0.6

// Regenerator re-invokes the LLM with the column validator's repair prompt.
// Without a provider, or when the provider fails, it falls back to the fixed
// substitution table.
type Regenerator struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewRegenerator returns the regeneration agent. provider may be nil.
func NewRegenerator(provider llm.Provider, logger *slog.Logger) *Regenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Regenerator{provider: provider, logger: logger}
}

// Name implements Agent.
func (a *Regenerator) Name() string { return RegeneratorName }

// Process implements Agent.
func (a *Regenerator) Process(ctx context.Context, input map[string]any, qc *Context) *Response {
	prompt := getString(input, keyRegenerationPrompt)
	originalQuery := getString(input, keyOriginalQuery)

	if prompt == "" {
		return &Response{Success: false, Message: "No regeneration prompt provided", Data: map[string]any{}}
	}

	logStep(a.logger, a.Name(), "attempting SQL regeneration with valid columns")

	if a.provider != nil {
		answer, err := a.provider.GenerateSQL(ctx, qc.Question, qc.SchemaInfo, qc.DataDictionary+"\n\n"+prompt)
		if err == nil && answer.SQLQuery != "" {
			confidence := answer.Confidence
			if confidence == 0 || confidence > regenerationConfidenceCap {
				confidence = regenerationConfidenceCap
			}
			return &Response{
				Success:    true,
				Message:    "SQL successfully regenerated with valid columns",
				Confidence: confidence,
				Data: map[string]any{
					keyOriginalQuery:             originalQuery,
					keyRegeneratedQuery:          answer.SQLQuery,
					"regeneration_explanation":   answer.Explanation,
					"regeneration_confidence":    confidence,
				},
			}
		}
		if err != nil {
			logStep(a.logger, a.Name(), "LLM regeneration failed: "+err.Error())
		}
	} else {
		logStep(a.logger, a.Name(), "LLM regeneration not available, using fallback substitution")
	}

	fallback := applyFallbackSubstitutions(originalQuery)
	return &Response{
		Success:    true,
		Message:    "Applied fallback column substitutions",
		Confidence: fallbackConfidence,
		Data: map[string]any{
			keyOriginalQuery:           originalQuery,
			keyRegeneratedQuery:        fallback,
			"regeneration_explanation": "Applied basic column name substitutions",
			"regeneration_confidence":  fallbackConfidence,
		},
	}
}

// applyFallbackSubstitutions rewrites the query with the fixed synonym
// table. Best effort: names with no entry stay as they are.
func applyFallbackSubstitutions(query string) string {
	out := query
	for old, new := range fallbackSubstitutions {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(old) + `\b`)
		out = pattern.ReplaceAllString(out, new)
	}
	return out
}
