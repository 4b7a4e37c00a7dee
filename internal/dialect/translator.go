// Package dialect rewrites SQL between the DB2 and SQLite dialects.
//
// The rule set is fixed and closed; constructs it does not recognize pass
// through unchanged. Rewrites are textual, anchored by case-insensitive
// regular expressions on token boundaries. String literals and comments are
// excised to placeholders before any rule runs and restored afterwards, so a
// LIMIT inside a quoted value is never touched.
//
// The rules are deliberately kept behind this single package so a future
// AST-based rewriter is a local change.
package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect identifies the SQL flavor a query must conform to.
type Dialect string

const (
	// DB2 is the IBM DB2 dialect.
	DB2 Dialect = "DB2"
	// SQLite is the SQLite dialect.
	SQLite Dialect = "SQLite"
)

// ParseDialect normalizes a dialect string.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DB2":
		return DB2, nil
	case "SQLITE":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unknown dialect %q (want DB2 or SQLite)", s)
	}
}

// LimitClause returns the dialect's row-limit clause for n rows.
func (d Dialect) LimitClause(n int) string {
	if d == DB2 {
		return fmt.Sprintf("FETCH FIRST %d ROWS ONLY", n)
	}
	return fmt.Sprintf("LIMIT %d", n)
}

// CurrentDate returns the dialect's current-date expression.
func (d Dialect) CurrentDate() string {
	if d == DB2 {
		return "CURRENT DATE"
	}
	return "date('now')"
}

// CurrentTimestamp returns the dialect's current-timestamp expression.
func (d Dialect) CurrentTimestamp() string {
	if d == DB2 {
		return "CURRENT TIMESTAMP"
	}
	return "datetime('now')"
}

// Rewrite records one rule that fired during translation.
type Rewrite struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// rule is one textual rewrite. A rule fires at most once per Translate call
// but replaces every occurrence when it does.
type rule struct {
	name    string
	pattern *regexp.Regexp
	replace string
	reason  string
}

// Format literals that form part of the rewrite rules themselves. These stay
// inline during excision; all other string literals become placeholders.
var ruleLiterals = map[string]struct{}{
	"now": {}, "%Y": {}, "%m": {}, "%d": {},
}

var toDB2Rules = []rule{
	{
		name:    "limit-to-fetch-first",
		pattern: regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`),
		replace: "FETCH FIRST $1 ROWS ONLY",
		reason:  "Converted LIMIT to FETCH FIRST (DB2 syntax)",
	},
	{
		name:    "strftime-year-to-year",
		pattern: regexp.MustCompile(`(?i)\bstrftime\s*\(\s*'%Y'\s*,\s*([^()]+)\s*\)`),
		replace: "YEAR($1)",
		reason:  "Converted strftime('%Y', ...) to YEAR(...)",
	},
	{
		name:    "strftime-month-to-month",
		pattern: regexp.MustCompile(`(?i)\bstrftime\s*\(\s*'%m'\s*,\s*([^()]+)\s*\)`),
		replace: "MONTH($1)",
		reason:  "Converted strftime('%m', ...) to MONTH(...)",
	},
	{
		name:    "date-now-to-current-date",
		pattern: regexp.MustCompile(`(?i)\bdate\s*\(\s*'now'\s*\)`),
		replace: "CURRENT DATE",
		reason:  "Converted date('now') to CURRENT DATE",
	},
	{
		name:    "datetime-now-to-current-timestamp",
		pattern: regexp.MustCompile(`(?i)\bdatetime\s*\(\s*'now'\s*\)`),
		replace: "CURRENT TIMESTAMP",
		reason:  "Converted datetime('now') to CURRENT TIMESTAMP",
	},
	{
		name:    "substring-to-substr",
		pattern: regexp.MustCompile(`(?i)\bSUBSTRING\s*\(`),
		replace: "SUBSTR(",
		reason:  "Converted SUBSTRING to SUBSTR",
	},
	{
		name:    "getdate-to-current-date",
		pattern: regexp.MustCompile(`(?i)\b(?:GETDATE|CURDATE)\s*\(\s*\)`),
		replace: "CURRENT DATE",
		reason:  "Converted GETDATE()/CURDATE() to CURRENT DATE",
	},
	{
		name:    "now-to-current-timestamp",
		pattern: regexp.MustCompile(`(?i)\bNOW\s*\(\s*\)`),
		replace: "CURRENT TIMESTAMP",
		reason:  "Converted NOW() to CURRENT TIMESTAMP",
	},
}

var toSQLiteRules = []rule{
	{
		name:    "fetch-first-to-limit",
		pattern: regexp.MustCompile(`(?i)\bFETCH\s+FIRST\s+(\d+)\s+ROWS?\s+ONLY\b`),
		replace: "LIMIT $1",
		reason:  "Converted FETCH FIRST to LIMIT (SQLite syntax)",
	},
	{
		name:    "decimal-to-round",
		pattern: regexp.MustCompile(`(?i)\bDECIMAL\s*\(\s*([^,()]+(?:\([^()]*\)[^,()]*)*)\s*,\s*\d+\s*,\s*(\d+)\s*\)`),
		replace: "ROUND($1, $2)",
		reason:  "Converted DECIMAL(value, precision, scale) to ROUND(value, scale)",
	},
	{
		name:    "quarter-to-strftime",
		pattern: regexp.MustCompile(`(?i)\bQUARTER\s*\(\s*([^()]+)\s*\)`),
		replace: "((CAST(strftime('%m', $1) AS INTEGER) - 1) / 3 + 1)",
		reason:  "Converted QUARTER(...) to a strftime month expression",
	},
	{
		name:    "year-to-strftime",
		pattern: regexp.MustCompile(`(?i)\bYEAR\s*\(\s*([^()]+)\s*\)`),
		replace: "strftime('%Y', $1)",
		reason:  "Converted YEAR(...) to strftime('%Y', ...)",
	},
	{
		name:    "month-to-strftime",
		pattern: regexp.MustCompile(`(?i)\bMONTH\s*\(\s*([^()]+)\s*\)`),
		replace: "strftime('%m', $1)",
		reason:  "Converted MONTH(...) to strftime('%m', ...)",
	},
	{
		name:    "current-timestamp-to-datetime-now",
		pattern: regexp.MustCompile(`(?i)\bCURRENT\s+TIMESTAMP\b`),
		replace: "datetime('now')",
		reason:  "Converted CURRENT TIMESTAMP to datetime('now')",
	},
	{
		name:    "current-date-to-date-now",
		pattern: regexp.MustCompile(`(?i)\bCURRENT\s+DATE\b`),
		replace: "date('now')",
		reason:  "Converted CURRENT DATE to date('now')",
	},
	{
		name:    "getdate-to-date-now",
		pattern: regexp.MustCompile(`(?i)\b(?:GETDATE|CURDATE)\s*\(\s*\)`),
		replace: "date('now')",
		reason:  "Converted GETDATE()/CURDATE() to date('now')",
	},
	{
		name:    "now-to-datetime-now",
		pattern: regexp.MustCompile(`(?i)\bNOW\s*\(\s*\)`),
		replace: "datetime('now')",
		reason:  "Converted NOW() to datetime('now')",
	},
	{
		name:    "substring-to-substr",
		pattern: regexp.MustCompile(`(?i)\bSUBSTRING\s*\(`),
		replace: "SUBSTR(",
		reason:  "Converted SUBSTRING to SUBSTR",
	},
	{
		name:    "full-outer-join-to-left-join",
		pattern: regexp.MustCompile(`(?i)\bFULL\s+OUTER\s+JOIN\b`),
		replace: "LEFT JOIN",
		reason:  "SQLite has no FULL OUTER JOIN; rewrote to LEFT JOIN",
	},
	{
		name:    "strip-nulls-ordering",
		pattern: regexp.MustCompile(`(?i)\s+NULLS\s+(?:FIRST|LAST)\b`),
		replace: "",
		reason:  "Stripped NULLS FIRST/LAST (unsupported ORDER BY modifier)",
	},
	{
		name:    "cast-double-to-real",
		pattern: regexp.MustCompile(`(?i)\bAS\s+DOUBLE\s*\)`),
		replace: "AS REAL)",
		reason:  "Converted CAST(... AS DOUBLE) to CAST(... AS REAL)",
	},
}

// Translator rewrites queries toward one target dialect.
type Translator struct {
	target Dialect
	rules  []rule
}

// NewTranslator returns a translator toward the given dialect.
func NewTranslator(target Dialect) *Translator {
	rules := toSQLiteRules
	if target == DB2 {
		rules = toDB2Rules
	}
	return &Translator{target: target, rules: rules}
}

// Target returns the dialect this translator rewrites toward.
func (t *Translator) Target() Dialect { return t.target }

// Translate rewrites query toward the target dialect and reports every rule
// that fired. Unknown constructs pass through unchanged.
func (t *Translator) Translate(query string) (string, []Rewrite) {
	masked, fragments := excise(query)

	var rewrites []Rewrite
	for _, r := range t.rules {
		if !r.pattern.MatchString(masked) {
			continue
		}
		masked = r.pattern.ReplaceAllString(masked, r.replace)
		rewrites = append(rewrites, Rewrite{Rule: r.name, Reason: r.reason})
	}

	return restore(masked, fragments), rewrites
}

// Translate is a convenience wrapper for one-shot translation.
func Translate(query string, target Dialect) (string, []Rewrite) {
	return NewTranslator(target).Translate(query)
}

// placeholder returns the excision token for fragment i. The token uses NUL
// delimiters, which cannot occur in SQL text, so no rule can match into it.
func placeholder(i int) string {
	return fmt.Sprintf("\x00%d\x00", i)
}

var placeholderPattern = regexp.MustCompile("\x00(\\d+)\x00")

// excise replaces string literals and comments with placeholders. Literals
// that are part of the rule vocabulary (date format strings, 'now') stay
// inline so the date-function rules can still see them.
func excise(query string) (string, []string) {
	var (
		out       strings.Builder
		fragments []string
	)

	stash := func(fragment string) {
		fragments = append(fragments, fragment)
		out.WriteString(placeholder(len(fragments) - 1))
	}

	for i := 0; i < len(query); {
		switch {
		case query[i] == '\'':
			end := i + 1
			for end < len(query) {
				if query[end] == '\'' {
					// Doubled quote is an escaped quote inside the literal.
					if end+1 < len(query) && query[end+1] == '\'' {
						end += 2
						continue
					}
					break
				}
				end++
			}
			if end >= len(query) {
				end = len(query) - 1
			}
			literal := query[i : end+1]
			if _, ok := ruleLiterals[strings.Trim(literal, "'")]; ok {
				out.WriteString(literal)
			} else {
				stash(literal)
			}
			i = end + 1
		case query[i] == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			stash(query[i : i+end])
			i += end
		case query[i] == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query) - i
			} else {
				end += 4 // include the delimiters
			}
			stash(query[i : i+end])
			i += end
		default:
			out.WriteByte(query[i])
			i++
		}
	}

	return out.String(), fragments
}

// restore puts excised fragments back in place of their placeholders.
func restore(masked string, fragments []string) string {
	if len(fragments) == 0 {
		return masked
	}
	return placeholderPattern.ReplaceAllStringFunc(masked, func(tok string) string {
		var idx int
		fmt.Sscanf(tok, "\x00%d\x00", &idx)
		if idx < 0 || idx >= len(fragments) {
			return tok
		}
		return fragments[idx]
	})
}

// StripLiteralsAndComments returns the query with comments removed and string
// literals replaced by empty literals; the format literals that the rewrite
// rules themselves emit (those in ruleLiterals) stay inline. Used by agents that scan for
// identifiers and must not match inside quoted values.
func StripLiteralsAndComments(query string) string {
	masked, fragments := excise(query)
	return placeholderPattern.ReplaceAllStringFunc(masked, func(tok string) string {
		var idx int
		fmt.Sscanf(tok, "\x00%d\x00", &idx)
		if idx < 0 || idx >= len(fragments) {
			return tok
		}
		f := fragments[idx]
		if strings.HasPrefix(f, "'") {
			return "''"
		}
		return " "
	})
}
