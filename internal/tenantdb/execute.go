package tenantdb

import (
	"context"
	"fmt"
	"strings"
)

// ExecResult is the uniform surface for pass-through execution: rows for
// statements that return data, an affected count for those that do not.
type ExecResult struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowCount     int      `json:"row_count"`
	RowsAffected int64    `json:"rows_affected"`
	HasRows      bool     `json:"has_rows"`
}

// Execute runs an arbitrary SQL statement on the session's connection.
func (c *Conn) Execute(ctx context.Context, sqlText string) (ExecResult, error) {
	if strings.TrimSpace(sqlText) == "" {
		return ExecResult{}, fmt.Errorf("sql statement is empty")
	}

	if !returnsRows(sqlText) {
		res, err := c.db.ExecContext(ctx, sqlText)
		if err != nil {
			return ExecResult{}, fmt.Errorf("execute statement on %s: %w", c.database, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return ExecResult{RowsAffected: affected}, nil
	}

	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		return ExecResult{}, fmt.Errorf("execute query on %s: %w", c.database, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ExecResult{}, fmt.Errorf("read result columns: %w", err)
	}
	if len(columns) == 0 {
		// Classified as row-returning but the driver produced no result
		// shape, for example a procedure call with no output.
		return ExecResult{}, nil
	}

	result := ExecResult{Columns: columns, HasRows: true, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return ExecResult{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return ExecResult{}, fmt.Errorf("iterate result rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// returnsRows routes a statement to the query or exec path. Statements that
// may produce a result set, including procedure calls, take the query path;
// a call that turns out rowless is handled there by its empty column list.
func returnsRows(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	for _, prefix := range []string{"select", "with", "show", "explain", "values", "table", "call"} {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return strings.Contains(normalized, "returning")
}
