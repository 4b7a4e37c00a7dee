package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
)

// ColumnValidatorName is the log name of the column validation stage. The
// recheck pass after regeneration logs under ColumnValidatorRecheckName.
const (
	ColumnValidatorName        = "ColumnValidation"
	ColumnValidatorRecheckName = "ColumnValidation-Recheck"
)

// maxPromptColumns bounds how many available columns a repair prompt lists.
const maxPromptColumns = 20

// MissingColumn is one unresolved column reference.
type MissingColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ColumnValidator verifies that every referenced column exists in the
// registry, substituting close matches where it can and escalating to
// regeneration when it cannot. Queries with a top-level CTE pass through
// untouched: derived columns cannot be grounded in the registry.
type ColumnValidator struct {
	logger *slog.Logger
}

// NewColumnValidator returns the column validation agent.
func NewColumnValidator(logger *slog.Logger) *ColumnValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ColumnValidator{logger: logger}
}

// Name implements Agent.
func (a *ColumnValidator) Name() string { return ColumnValidatorName }

var (
	ctePattern       = regexp.MustCompile(`(?i)\bWITH\s+([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)
	whereComparison  = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s*(?:=|>|<|>=|<=|<>|!=)\s*(?:''|\d)`)
	groupByPattern   = regexp.MustCompile(`(?i)GROUP\s+BY\s+([A-Za-z0-9_,\s]+?)(?:\s+ORDER\s+BY|\s+HAVING|\s*$)`)
	aggregateArg     = regexp.MustCompile(`(?i)\b(?:SUM|COUNT|AVG|MIN|MAX)\s*\(\s*(?:DISTINCT\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\)`)
	sqlValueKeywords = map[string]struct{}{"AND": {}, "OR": {}, "NOT": {}, "EXISTS": {}, "NULL": {}, "TRUE": {}, "FALSE": {}, "YEAR": {}, "QUARTER": {}, "MONTH": {}, "WEEK": {}}
)

// Process implements Agent.
func (a *ColumnValidator) Process(ctx context.Context, input map[string]any, qc *Context) *Response {
	sqlQuery := inputQuery(input, keyOptimizedQuery)
	if sqlQuery == "" {
		return &Response{Success: false, Message: "No SQL query provided", Data: map[string]any{}}
	}

	if isCTEQuery(sqlQuery) {
		logStep(a.logger, a.Name(), "query contains CTE - skipping column validation")
		return &Response{
			Success:    true,
			Message:    "Query contains CTE - column validation skipped",
			Confidence: 0.9,
			Data: map[string]any{
				keyOriginalQuery:     sqlQuery,
				keyValidatedQuery:    sqlQuery,
				"missing_columns":    []MissingColumn{},
				"column_mappings":    map[string]string{},
				"substitutions_made": []string{},
				keyNeedsRegeneration: false,
			},
		}
	}

	logStep(a.logger, a.Name(), "extracting column references from query")
	referenced := extractColumnReferences(sqlQuery)

	logStep(a.logger, a.Name(), "validating columns against available schema")
	var (
		missing          []MissingColumn
		availableColumns []string
		mappings         = make(map[string]string)
	)
	for table, columns := range referenced {
		tableColumns := qc.ColumnsOf(table)
		if tableColumns == nil {
			// Unknown table: likely a CTE or an external relation. Not ours
			// to validate.
			logStep(a.logger, a.Name(), "skipping column validation for unknown table "+table)
			continue
		}
		availableColumns = append(availableColumns, tableColumns...)

		for _, col := range columns {
			if hasColumn(tableColumns, col) {
				continue
			}
			missing = append(missing, MissingColumn{Table: table, Column: col})
			logStep(a.logger, a.Name(), fmt.Sprintf("missing column detected: %s in %s", col, table))
			if similar := findSimilarColumn(col, tableColumns); similar != "" {
				mappings[col] = similar
				logStep(a.logger, a.Name(), fmt.Sprintf("found similar column: %s -> %s", col, similar))
			}
		}
	}

	needsRegeneration := false
	for _, m := range missing {
		if _, ok := mappings[m.Column]; !ok {
			needsRegeneration = true
			break
		}
	}

	corrected := sqlQuery
	var substitutions []string
	if len(mappings) > 0 && !needsRegeneration {
		corrected, substitutions = applyColumnSubstitutions(sqlQuery, mappings)
	}

	confidence := 1.0
	switch {
	case needsRegeneration:
		confidence = 0.3
	case len(missing) > 0:
		confidence = 0.7
	}

	message := "All columns validated successfully"
	if len(missing) > 0 {
		message = fmt.Sprintf("Column validation complete - %d missing columns found", len(missing))
	}

	data := map[string]any{
		keyOriginalQuery:     sqlQuery,
		keyValidatedQuery:    corrected,
		"missing_columns":    missing,
		"column_mappings":    mappings,
		"substitutions_made": substitutions,
		"available_columns":  availableColumns,
		keyNeedsRegeneration: needsRegeneration,
		"step_details": map[string]any{
			"columns_checked":    countReferenced(referenced),
			"missing_columns":    len(missing),
			"substitutions_made": len(substitutions),
		},
	}
	if needsRegeneration {
		data[keyRegenerationPrompt] = buildRegenerationPrompt(missing, availableColumns, qc)
	}

	return &Response{
		Success:     !needsRegeneration,
		Message:     message,
		Confidence:  confidence,
		Data:        data,
		Suggestions: buildColumnSuggestions(missing, mappings),
	}
}

// extractColumnReferences collects column references per table from
// qualified names, aggregate arguments, column-versus-literal comparisons,
// and GROUP BY lists. CTE names are
// dropped so derived relations never produce false misses.
func extractColumnReferences(query string) map[string][]string {
	clean := dialect.StripLiteralsAndComments(query)

	cteNames := make(map[string]struct{})
	for _, m := range ctePattern.FindAllStringSubmatch(clean, -1) {
		cteNames[strings.ToUpper(m[1])] = struct{}{}
	}

	aliases := extractTableAliases(clean)
	var primaryTable string
	for _, table := range extractTables(clean) {
		if _, isCTE := cteNames[strings.ToUpper(table)]; isCTE {
			continue
		}
		primaryTable = strings.ToUpper(table)
		break
	}

	referenced := make(map[string][]string)
	add := func(table, column string) {
		table = strings.ToUpper(table)
		column = strings.ToUpper(column)
		if _, isCTE := cteNames[table]; isCTE {
			return
		}
		for _, existing := range referenced[table] {
			if existing == column {
				return
			}
		}
		referenced[table] = append(referenced[table], column)
	}

	for _, m := range qualifiedColumn.FindAllStringSubmatch(clean, -1) {
		tableRef, column := strings.ToUpper(m[1]), m[2]
		actual := tableRef
		if resolved, ok := aliases[tableRef]; ok {
			actual = strings.ToUpper(resolved)
		}
		add(actual, column)
	}

	if primaryTable != "" {
		for _, m := range aggregateArg.FindAllStringSubmatch(clean, -1) {
			add(primaryTable, m[1])
		}

		for _, m := range whereComparison.FindAllStringSubmatch(clean, -1) {
			name := strings.ToUpper(m[1])
			if _, keyword := sqlValueKeywords[name]; keyword {
				continue
			}
			add(primaryTable, name)
		}

		if m := groupByPattern.FindStringSubmatch(clean); m != nil {
			for _, col := range strings.Split(m[1], ",") {
				col = strings.TrimSpace(col)
				if col == "" || isDigits(col) || strings.Contains(col, "(") {
					continue
				}
				add(primaryTable, col)
			}
		}
	}

	return referenced
}

// applyColumnSubstitutions replaces mapped columns in both qualified and
// clearly column-shaped unqualified positions.
func applyColumnSubstitutions(query string, mappings map[string]string) (string, []string) {
	corrected := query
	var substitutions []string

	record := func(old, new string) {
		entry := old + " -> " + new
		for _, s := range substitutions {
			if s == entry {
				return
			}
		}
		substitutions = append(substitutions, entry)
	}

	for old, new := range mappings {
		qualified := regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*\.)` + regexp.QuoteMeta(old) + `\b`)
		if qualified.MatchString(corrected) {
			corrected = qualified.ReplaceAllString(corrected, "${1}"+new)
			record(old, new)
		}

		unqualified := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(old) + `\b(\s*[,)]|\s+AS\s|\s|$)`)
		if unqualified.MatchString(corrected) {
			corrected = unqualified.ReplaceAllString(corrected, new+"${1}")
			record(old, new)
		}
	}

	return corrected, substitutions
}

// buildRegenerationPrompt enumerates what is missing and what exists so the
// LLM can rebuild the query on real columns.
func buildRegenerationPrompt(missing []MissingColumn, available []string, qc *Context) string {
	missingList := make([]string, len(missing))
	for i, m := range missing {
		missingList[i] = fmt.Sprintf("%s (from %s)", m.Column, m.Table)
	}

	shown := available
	ellipsis := ""
	if len(shown) > maxPromptColumns {
		shown = shown[:maxPromptColumns]
		ellipsis = "..."
	}

	return fmt.Sprintf(`The generated SQL query contains columns that don't exist in the database schema.

MISSING COLUMNS:
%s

AVAILABLE COLUMNS:
%s%s

Please regenerate the SQL query using only the available columns.
Consider these alternatives:
- For OPPORTUNITY_ID: use OPPTY_ID, OPP_ID, or similar
- For OPPORTUNITY_VALUE: use OPPTY_VALUE, DEAL_VALUE, or PPV_AMT
- For CLIENT_NAME: use CUSTOMER_NAME or ACCOUNT_NAME
- For missing date columns: use available date/time columns

Original question: %s
Database type: %s`,
		strings.Join(missingList, ", "),
		strings.Join(shown, ", "), ellipsis,
		qc.Question, qc.Dialect)
}

func buildColumnSuggestions(missing []MissingColumn, mappings map[string]string) []string {
	if len(missing) == 0 {
		return nil
	}

	suggestions := []string{fmt.Sprintf("Found %d missing columns", len(missing))}
	if len(mappings) > 0 {
		suggestions = append(suggestions, "Some columns can be automatically substituted:")
		for old, new := range mappings {
			suggestions = append(suggestions, fmt.Sprintf("  %s -> %s", old, new))
		}
	}
	for _, m := range missing {
		if _, ok := mappings[m.Column]; !ok {
			suggestions = append(suggestions, fmt.Sprintf("  %s (from %s) requires regeneration", m.Column, m.Table))
		}
	}
	return suggestions
}

func countReferenced(referenced map[string][]string) int {
	n := 0
	for _, cols := range referenced {
		n += len(cols)
	}
	return n
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
