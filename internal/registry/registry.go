// Package registry exposes the warehouse schema to the query pipeline.
//
// A Registry holds the set of known tables, each table's ordered column list,
// and the two opaque text blobs (schema summary and data dictionary) that
// ground LLM prompts. Lookups are case-insensitive; canonical casing is
// preserved for output. The Registry is immutable once handed to a request
// and may be shared freely across goroutines.
package registry

import (
	"sort"
	"strings"
)

// Registry is the read-only schema catalog supplied to the pipeline.
type Registry struct {
	tables         []string            // canonical names, insertion order
	byUpper        map[string]string   // upper name -> canonical name
	columns        map[string][]string // upper table -> canonical columns
	schemaText     string
	dictionaryText string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byUpper: make(map[string]string),
		columns: make(map[string][]string),
	}
}

// AddTable registers a table with its ordered column list. Re-adding a table
// replaces its columns.
func (r *Registry) AddTable(name string, columns []string) {
	upper := strings.ToUpper(name)
	if _, exists := r.byUpper[upper]; !exists {
		r.tables = append(r.tables, name)
	}
	r.byUpper[upper] = name
	r.columns[upper] = append([]string(nil), columns...)
}

// SetSchemaText sets the short human-readable schema summary.
func (r *Registry) SetSchemaText(s string) { r.schemaText = s }

// SetDictionaryText sets the data-dictionary blob passed to LLMs.
func (r *Registry) SetDictionaryText(s string) { r.dictionaryText = s }

// Tables returns the canonical table names in registration order.
func (r *Registry) Tables() []string {
	return append([]string(nil), r.tables...)
}

// Empty reports whether no tables are registered.
func (r *Registry) Empty() bool { return len(r.tables) == 0 }

// HasTable reports whether the table is known, ignoring case.
func (r *Registry) HasTable(name string) bool {
	_, ok := r.byUpper[strings.ToUpper(name)]
	return ok
}

// CanonicalTable resolves a table name to its canonical casing.
func (r *Registry) CanonicalTable(name string) (string, bool) {
	canonical, ok := r.byUpper[strings.ToUpper(name)]
	return canonical, ok
}

// Columns returns the ordered column list for a table, or nil when the table
// is unknown.
func (r *Registry) Columns(table string) []string {
	cols, ok := r.columns[strings.ToUpper(table)]
	if !ok {
		return nil
	}
	return append([]string(nil), cols...)
}

// HasColumn reports whether the table has the column, ignoring case.
func (r *Registry) HasColumn(table, column string) bool {
	_, ok := r.CanonicalColumn(table, column)
	return ok
}

// CanonicalColumn resolves a column within a table to its canonical casing.
func (r *Registry) CanonicalColumn(table, column string) (string, bool) {
	upper := strings.ToUpper(column)
	for _, c := range r.columns[strings.ToUpper(table)] {
		if strings.ToUpper(c) == upper {
			return c, true
		}
	}
	return "", false
}

// ColumnMap returns table name -> column list for every registered table,
// keyed by canonical table name. The pipeline context is built from this.
func (r *Registry) ColumnMap() map[string][]string {
	out := make(map[string][]string, len(r.tables))
	for _, t := range r.tables {
		out[t] = r.Columns(t)
	}
	return out
}

// SchemaText returns the schema summary blob.
func (r *Registry) SchemaText() string { return r.schemaText }

// DictionaryText returns the data-dictionary blob.
func (r *Registry) DictionaryText() string { return r.dictionaryText }

// AllColumns returns the deduplicated, sorted union of all column names.
func (r *Registry) AllColumns() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cols := range r.columns {
		for _, c := range cols {
			upper := strings.ToUpper(c)
			if _, ok := seen[upper]; ok {
				continue
			}
			seen[upper] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
