// Package warehouse provides read-only query execution against the demo
// pipeline warehouse.
//
// The warehouse is an in-process SQLite database (pure-Go driver). Every
// query is validated as SELECT-only before execution and logged with its
// duration and row count. When the pipeline dialect is DB2, callers
// translate through the dialect package before handing the query here.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Yerdna1/Text-to-SQL/internal/registry"
)

// forbiddenKeywords indicate write operations and are rejected outright.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM", "REINDEX", "REPLACE",
}

// selectOnlyPattern matches statements the warehouse will execute.
var selectOnlyPattern = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\s`)

// Client executes read-only queries against the SQLite warehouse.
type Client struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open connects to the warehouse database at path (":memory:" for an
// in-memory instance) and verifies the connection.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse: ping %s: %w", path, err)
	}

	logger.Info("warehouse opened", slog.String("path", path))
	return &Client{db: db, path: path, logger: logger.With(slog.String("component", "warehouse"))}, nil
}

// Close releases the underlying database handle.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB exposes the handle for schema setup in tests and migrations.
func (c *Client) DB() *sql.DB { return c.db }

// ValidateReadOnly rejects anything that is not a SELECT (or WITH-prefixed
// SELECT) statement.
func ValidateReadOnly(query string) error {
	if !selectOnlyPattern.MatchString(query) {
		return fmt.Errorf("warehouse: only SELECT statements are allowed")
	}
	upper := strings.ToUpper(query)
	for _, keyword := range forbiddenKeywords {
		if regexp.MustCompile(`\b` + keyword + `\b`).MatchString(upper) {
			return fmt.Errorf("warehouse: forbidden keyword %s in query", keyword)
		}
	}
	return nil
}

// ExecuteQuery validates and runs a SELECT, returning rows with column
// metadata and provenance.
func (c *Client) ExecuteQuery(ctx context.Context, query string, provenance Provenance) (*QueryResult, error) {
	if err := ValidateReadOnly(query); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.Warn("query failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("warehouse: query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("warehouse: columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("warehouse: column types: %w", err)
	}

	columns := make([]ColumnMeta, len(columnNames))
	for i, name := range columnNames {
		columns[i] = ColumnMeta{Name: name, Type: columnTypes[i].DatabaseTypeName()}
	}

	var data []map[string]any
	for rows.Next() {
		values := make([]any, len(columnNames))
		pointers := make([]any, len(columnNames))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("warehouse: scan: %w", err)
		}

		row := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: rows: %w", err)
	}

	elapsed := time.Since(start)
	c.logger.Debug("query executed",
		slog.Int("row_count", len(data)),
		slog.Duration("duration", elapsed),
	)

	return &QueryResult{
		Columns:         columns,
		Data:            data,
		RowCount:        len(data),
		ExecutionTimeMs: elapsed.Milliseconds(),
		Provenance:      provenance,
	}, nil
}

// LoadRegistry builds a schema registry from the warehouse's current tables
// and columns, preserving declared column order.
func (c *Client) LoadRegistry(ctx context.Context) (*registry.Registry, error) {
	reg := registry.New()

	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("warehouse: list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("warehouse: scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, table := range tables {
		columns, err := c.tableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		reg.AddTable(table, columns)
	}

	reg.SetSchemaText(schemaSummary(reg))
	return reg, nil
}

func (c *Client) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("warehouse: table info %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func schemaSummary(reg *registry.Registry) string {
	var b strings.Builder
	b.WriteString("Warehouse tables:\n")
	for _, table := range reg.Tables() {
		fmt.Fprintf(&b, "- %s (%s)\n", table, strings.Join(reg.Columns(table), ", "))
	}
	return b.String()
}
