package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Yerdna1/Text-to-SQL/internal/dialect"
)

// SyntaxValidatorName is the log name of the syntax validation stage.
const SyntaxValidatorName = "SyntaxValidator"

// SyntaxValidator normalizes SQL to the target dialect and flags schema
// references it cannot resolve. Unresolved table and column names are not
// critical here; the column validator deals with them later.
type SyntaxValidator struct {
	logger *slog.Logger
}

// NewSyntaxValidator returns the syntax validation agent.
func NewSyntaxValidator(logger *slog.Logger) *SyntaxValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyntaxValidator{logger: logger}
}

// Name implements Agent.
func (a *SyntaxValidator) Name() string { return SyntaxValidatorName }

var (
	fromTablePattern  = regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	joinTablePattern  = regexp.MustCompile(`(?i)\bJOIN\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	qualifiedColumn   = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	fetchFirstPattern = regexp.MustCompile(`(?i)FETCH\s+FIRST\s+\d+\s+ROWS?\s+ONLY`)
)

// Process implements Agent.
func (a *SyntaxValidator) Process(ctx context.Context, input map[string]any, qc *Context) *Response {
	sqlQuery := getString(input, keySQLQuery)
	if sqlQuery == "" {
		return &Response{Success: false, Message: "No SQL query provided", Data: map[string]any{}}
	}

	var (
		issues      []string
		corrections []string
		suggestions []string
	)

	logStep(a.logger, a.Name(), "translating query toward "+string(qc.Dialect))
	corrected, rewrites := dialect.Translate(sqlQuery, qc.Dialect)
	for _, rw := range rewrites {
		issues = append(issues, rw.Reason)
		corrections = append(corrections, "Dialect: "+rw.Reason)
	}

	logStep(a.logger, a.Name(), "checking statement structure")
	structural := a.checkStructure(corrected, qc.Dialect)
	issues = append(issues, structural...)

	logStep(a.logger, a.Name(), "validating table names against schema")
	tablesUsed := extractTables(corrected)
	var tableIssues []string
	for _, table := range tablesUsed {
		if !qc.HasTable(table) {
			issue := fmt.Sprintf("Table '%s' not found in available tables", table)
			issues = append(issues, issue)
			tableIssues = append(tableIssues, issue)
			suggestions = append(suggestions, "Available tables: "+strings.Join(qc.TablesAvailable, ", "))
		}
	}

	logStep(a.logger, a.Name(), "validating column names against schema")
	columnIssues, columnSuggestions := a.checkColumns(corrected, qc)
	issues = append(issues, columnIssues...)
	suggestions = append(suggestions, columnSuggestions...)

	confidence := 1.0 - 0.1*float64(len(issues))
	if confidence < 0.1 {
		confidence = 0.1
	}
	confidence = clampConfidence(confidence)

	// Table and column misses are not critical; they are handled downstream.
	var critical []string
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		if strings.Contains(lower, "table") || strings.Contains(lower, "column") || strings.Contains(lower, "not found") {
			continue
		}
		critical = append(critical, issue)
	}

	message := "Syntax validation complete - no issues found"
	if len(corrections) > 0 {
		message = fmt.Sprintf("Syntax validation complete - %d corrections applied", len(corrections))
	}

	return &Response{
		Success:    len(critical) == 0 || len(corrections) > 0,
		Message:    message,
		Confidence: confidence,
		Data: map[string]any{
			keyOriginalQuery:  sqlQuery,
			keyValidatedQuery: corrected,
			"issues":          issues,
			"tables_used":     tablesUsed,
			"corrections":     corrections,
			"step_details": map[string]any{
				"syntax_corrections": len(corrections),
				"table_issues":       len(tableIssues),
				"column_issues":      len(columnIssues),
				"total_changes":      len(corrections),
			},
		},
		Suggestions: suggestions,
	}
}

// checkStructure flags malformed constructs the translator cannot repair.
// These notes never rewrite the query.
func (a *SyntaxValidator) checkStructure(query string, d dialect.Dialect) []string {
	var issues []string
	stripped := dialect.StripLiteralsAndComments(query)
	upper := strings.ToUpper(stripped)

	if strings.Contains(upper, " JOIN ") && !strings.Contains(upper, " ON ") {
		issues = append(issues, "JOIN clause missing ON condition")
	}

	if d == dialect.DB2 && strings.Contains(upper, "FETCH FIRST") && !fetchFirstPattern.MatchString(stripped) {
		issues = append(issues, "Invalid FETCH FIRST syntax. Use: FETCH FIRST n ROWS ONLY")
	}

	return issues
}

// checkColumns flags qualified column references that resolve to a known
// table but not to one of its columns. Non-fatal by design.
func (a *SyntaxValidator) checkColumns(query string, qc *Context) ([]string, []string) {
	var issues, suggestions []string

	stripped := dialect.StripLiteralsAndComments(query)
	aliases := extractTableAliases(stripped)

	seen := make(map[string]struct{})
	for _, m := range qualifiedColumn.FindAllStringSubmatch(stripped, -1) {
		tableRef, column := m[1], m[2]
		table := tableRef
		if resolved, ok := aliases[strings.ToUpper(tableRef)]; ok {
			table = resolved
		}
		if !qc.HasTable(table) {
			continue
		}

		key := strings.ToUpper(table + "." + column)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if hasColumn(qc.ColumnsOf(table), column) {
			continue
		}
		issues = append(issues, fmt.Sprintf("Column '%s' not found in table '%s'", column, table))
		if similar := similarColumns(column, qc.ColumnsOf(table), 3); len(similar) > 0 {
			suggestions = append(suggestions, "Did you mean: "+strings.Join(similar, ", ")+"?")
		}
	}

	return issues, suggestions
}

// extractTables returns the distinct table names referenced in FROM and JOIN
// clauses, keyword noise excluded.
func extractTables(query string) []string {
	stripped := dialect.StripLiteralsAndComments(query)

	seen := make(map[string]struct{})
	var tables []string
	add := func(name string) {
		upper := strings.ToUpper(name)
		switch upper {
		case "SELECT", "WHERE", "GROUP", "ORDER", "HAVING":
			return
		}
		if _, dup := seen[upper]; dup {
			return
		}
		seen[upper] = struct{}{}
		tables = append(tables, name)
	}

	for _, m := range fromTablePattern.FindAllStringSubmatch(stripped, -1) {
		add(m[1])
	}
	for _, m := range joinTablePattern.FindAllStringSubmatch(stripped, -1) {
		add(m[1])
	}
	return tables
}

// tableAliasPattern captures "FROM table alias" / "JOIN table AS alias".
var tableAliasPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*))?`)

// reserved words that must not be mistaken for aliases after a table name.
var notAliases = map[string]struct{}{
	"WHERE": {}, "GROUP": {}, "ORDER": {}, "HAVING": {}, "ON": {}, "JOIN": {},
	"INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "OUTER": {}, "CROSS": {},
	"UNION": {}, "EXCEPT": {}, "INTERSECT": {}, "LIMIT": {}, "FETCH": {}, "AS": {},
}

// extractTableAliases maps upper-cased aliases to their table names.
func extractTableAliases(stripped string) map[string]string {
	aliases := make(map[string]string)
	for _, m := range tableAliasPattern.FindAllStringSubmatch(stripped, -1) {
		table, alias := m[1], m[2]
		if alias == "" {
			continue
		}
		if _, reserved := notAliases[strings.ToUpper(alias)]; reserved {
			continue
		}
		aliases[strings.ToUpper(alias)] = table
	}
	return aliases
}

func hasColumn(columns []string, name string) bool {
	upper := strings.ToUpper(name)
	for _, c := range columns {
		if strings.ToUpper(c) == upper {
			return true
		}
	}
	return false
}

// similarColumns returns up to max columns sharing a substring with name.
func similarColumns(name string, columns []string, max int) []string {
	upper := strings.ToUpper(name)
	var out []string
	for _, c := range columns {
		cUpper := strings.ToUpper(c)
		if strings.Contains(cUpper, upper) || strings.Contains(upper, cUpper) {
			out = append(out, c)
			if len(out) == max {
				break
			}
		}
	}
	return out
}
