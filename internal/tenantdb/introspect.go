package tenantdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aishitdharwal/text2sql/internal/schema"
)

type TableInfo struct {
	Name    string `json:"table_name"`
	Comment string `json:"table_comment,omitempty"`
}

// ListTables returns all base tables in the public schema with their comments,
// ordered by name.
func (c *Conn) ListTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT c.table_name, obj_description(pgc.oid, 'pg_class') AS table_comment
FROM information_schema.tables c
JOIN pg_class pgc ON c.table_name = pgc.relname
WHERE c.table_schema = 'public'
AND c.table_type = 'BASE TABLE'
ORDER BY c.table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables for %s: %w", c.database, err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]TableInfo, 0)
	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, TableInfo{Name: name, Comment: comment.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

// TableColumns returns a table's columns in ordinal position order. The
// fingerprinter re-sorts by name, so consumers must not read meaning into
// this ordering.
func (c *Conn) TableColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT c.column_name, c.data_type, c.is_nullable, pgd.description AS column_comment
FROM information_schema.columns c
LEFT JOIN pg_catalog.pg_statio_all_tables st ON c.table_name = st.relname
LEFT JOIN pg_catalog.pg_description pgd ON pgd.objoid = st.relid AND pgd.objsubid = c.ordinal_position
WHERE c.table_name = $1
AND c.table_schema = 'public'
ORDER BY c.ordinal_position`, tableName)
	if err != nil {
		return nil, fmt.Errorf("columns for %s.%s: %w", c.database, tableName, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]schema.Column, 0)
	for rows.Next() {
		var name, dataType, isNullable string
		var comment sql.NullString
		if err := rows.Scan(&name, &dataType, &isNullable, &comment); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, schema.Column{
			Name:     name,
			DataType: dataType,
			Nullable: isNullable != "NO",
			Comment:  comment.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// Snapshot introspects every table and its columns into a schema snapshot.
func (c *Conn) Snapshot(ctx context.Context) (schema.Snapshot, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(schema.Snapshot, len(tables))
	for _, table := range tables {
		columns, err := c.TableColumns(ctx, table.Name)
		if err != nil {
			return nil, err
		}
		snapshot[table.Name] = schema.Table{Comment: table.Comment, Columns: columns}
	}
	return snapshot, nil
}
