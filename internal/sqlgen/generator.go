// Package sqlgen turns a natural-language question plus a schema snapshot
// into a single raw SQL statement via an external language-generation
// service.
package sqlgen

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aishitdharwal/text2sql/internal/schema"
)

type Request struct {
	Question string
	Database string
	Schema   schema.Snapshot
}

type Generator interface {
	GenerateSQL(ctx context.Context, req Request) (string, error)
}

// buildSchemaContext renders the snapshot into the textual block embedded in
// the prompt. Tables are sorted so the prompt is deterministic for a given
// schema.
func buildSchemaContext(snapshot schema.Snapshot) string {
	tableNames := make([]string, 0, len(snapshot))
	for name := range snapshot {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var b strings.Builder
	for _, tableName := range tableNames {
		table := snapshot[tableName]
		b.WriteString("\nTable: " + tableName + "\n")
		if table.Comment != "" {
			b.WriteString("Description: " + table.Comment + "\n")
		}
		b.WriteString("Columns:\n")
		for _, column := range table.Columns {
			line := "  - " + column.Name + " (" + column.DataType + ")"
			if column.Comment != "" {
				line += " - " + column.Comment
			}
			if !column.Nullable {
				line += " [NOT NULL]"
			}
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildPrompt(req Request) string {
	return fmt.Sprintf(`You are an expert SQL query generator for PostgreSQL databases. Your task is to convert natural language questions into accurate SQL queries.

DATABASE: %s

AVAILABLE TABLES AND SCHEMAS:
%s

USER QUESTION: %s

INSTRUCTIONS:
1. Generate a PostgreSQL-compatible SQL query that answers the user's question
2. Use proper JOIN clauses when querying multiple tables
3. Use appropriate WHERE clauses for filtering
4. Use GROUP BY and aggregate functions when needed
5. Always use table aliases for better readability
6. Include LIMIT clauses when appropriate to avoid returning too many rows
7. Return ONLY the SQL query without any markdown formatting, explanations, or code blocks
8. The query should be ready to execute as-is

IMPORTANT:
- Return ONLY the raw SQL query
- Do NOT include `+"```sql or ```"+` markers
- Do NOT include any explanatory text before or after the query
- The query should be a single statement that can be executed directly

SQL QUERY:`, req.Database, buildSchemaContext(req.Schema), strings.TrimSpace(req.Question))
}

// sanitizeSQL strips markdown code-fence markers and surrounding whitespace
// from a model answer.
func sanitizeSQL(value string) string {
	cleaned := strings.ReplaceAll(value, "```sql", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
