package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// summarySampleRows caps how many result rows the summary prompt embeds.
const summarySampleRows = 5

// ResultSummaryContext carries everything the result-summary prompt embeds.
type ResultSummaryContext struct {
	Question string
	SQL      string
	RowCount int
	Results  []map[string]any
}

// BuildResultSummaryPrompt renders the prompt asking the model for a short,
// jargon-free narrative answer over the executed query's results.
func BuildResultSummaryPrompt(ctx ResultSummaryContext) string {
	sample := ctx.Results
	if len(sample) > summarySampleRows {
		sample = sample[:summarySampleRows]
	}

	preview, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		preview = []byte("[]")
	}

	var b strings.Builder

	b.WriteString("Summarize the following query results in 2-3 clear sentences for a non-technical user.\n\n")
	b.WriteString(fmt.Sprintf("Original Question: %s\n\n", ctx.Question))
	b.WriteString(fmt.Sprintf("SQL Query Used: %s\n\n", ctx.SQL))
	b.WriteString(fmt.Sprintf("Number of Results: %d\n\n", ctx.RowCount))
	b.WriteString(fmt.Sprintf("Sample Results (first %d rows):\n", summarySampleRows))
	b.Write(preview)
	b.WriteString("\n\nProvide a natural language summary that:\n")
	b.WriteString("1. Directly answers the user's question\n")
	b.WriteString("2. Highlights key findings or patterns\n")
	b.WriteString("3. Uses plain English without technical jargon\n")
	b.WriteString("4. Mentions specific numbers when relevant\n")
	b.WriteString("5. Is concise and easy to understand\n\n")
	b.WriteString("Summary:")

	return b.String()
}
