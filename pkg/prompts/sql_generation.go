// Package prompts contains the deterministic prompt builders for the
// NL-to-SQL pipeline. Builders are pure functions of their context structs,
// so golden-output tests pin the exact prompt text.
package prompts

import (
	"fmt"
	"strings"
)

// SQLGenerationContext carries everything the SQL-generation prompt embeds.
type SQLGenerationContext struct {
	DatasetName string
	SchemaInfo  string // pre-formatted table/column listing
	SampleRows  string // pre-formatted JSON sample rows
	Question    string
	RowLimit    int
}

// BuildSQLGenerationPrompt renders the prompt instructing the model to emit
// a single bare SELECT statement for the user's question.
func BuildSQLGenerationPrompt(ctx SQLGenerationContext) string {
	var b strings.Builder

	b.WriteString("You are a PostgreSQL expert. Generate a SQL query based on the user's question.\n\n")
	b.WriteString(fmt.Sprintf("Dataset: %s\n\n", ctx.DatasetName))
	b.WriteString("Tables and Columns:\n")
	b.WriteString(ctx.SchemaInfo)
	b.WriteString("\n\nSample Data (first 3 rows):\n")
	b.WriteString(ctx.SampleRows)
	b.WriteString("\n\nIMPORTANT RULES:\n")
	b.WriteString("1. Generate ONLY a SELECT query - no other SQL operations\n")
	b.WriteString("2. Use proper PostgreSQL syntax\n")
	b.WriteString("3. Return ONLY the SQL query with no explanations, markdown, or code blocks\n")
	b.WriteString("4. Use table and column names EXACTLY as shown above\n")
	b.WriteString(fmt.Sprintf("5. The query will automatically be limited to %d rows\n", ctx.RowLimit))
	b.WriteString("6. Use appropriate WHERE clauses, JOINs, and aggregations as needed\n")
	b.WriteString("7. Handle NULL values appropriately\n")
	b.WriteString("8. Use proper PostgreSQL functions and operators\n\n")
	b.WriteString(fmt.Sprintf("User Question: %s\n\n", ctx.Question))
	b.WriteString("SQL Query:")

	return b.String()
}
