// Package sqlguard is the client-side lexical gate for model-generated SQL.
//
// It is deliberately a keyword/regex heuristic, not a parser. Comment or
// string-embedded keyword tricks can slip past it; the execution server runs
// its own independent gate, and both fail closed.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// dangerousKeywords are statement types and verbs that must never appear in
// a generated query, matched as whole words.
var dangerousKeywords = []string{
	"DELETE", "DROP", "UPDATE", "INSERT", "ALTER",
	"TRUNCATE", "CREATE", "GRANT", "REVOKE", "EXEC",
	"EXECUTE", "CALL", "MERGE", "REPLACE",
}

var (
	keywordPatterns = buildKeywordPatterns()

	// FROM <identifier>, identifier optionally wrapped in double or single quotes
	fromPattern = regexp.MustCompile(`(?i)\bFROM\s+["']?(\w+)["']?`)

	// ```sql ... ``` fences the model may wrap its answer in
	fencePattern = regexp.MustCompile("```(?:sql)?\n?")
)

func buildKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(dangerousKeywords))
	for _, kw := range dangerousKeywords {
		patterns[kw] = regexp.MustCompile(`\b` + kw + `\b`)
	}
	return patterns
}

// ValidationResult reports the outcome of one validation pass.
// ValidatedSQL carries the limit-amended statement even when invalid;
// callers must check IsValid before using it.
type ValidationResult struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []string `json:"errors"`
	ValidatedSQL string   `json:"validated_sql"`
}

// Validate checks a SQL statement against the read-only subset:
// no dangerous keywords, SELECT only, every FROM target on the allow-list,
// single statement. A LIMIT clause is appended when absent so the result
// is bounded regardless of what the model produced.
//
// Validate is idempotent: feeding ValidatedSQL back in yields the same
// verdict and does not append a second LIMIT.
func Validate(sqlQuery string, allowedTables []string, defaultLimit int) ValidationResult {
	trimmed := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	normalized := strings.ToUpper(trimmed)
	var errs []string

	for _, kw := range dangerousKeywords {
		if keywordPatterns[kw].MatchString(normalized) {
			errs = append(errs, fmt.Sprintf("dangerous keyword detected: %s", kw))
		}
	}

	if !strings.HasPrefix(normalized, "SELECT") {
		errs = append(errs, "only SELECT queries are allowed")
	}

	if hasSemicolonOutsideStrings(trimmed) {
		errs = append(errs, "multiple SQL statements are not allowed")
	}

	// An empty allow-list means the caller has no table scope to enforce,
	// not that every table is forbidden.
	if len(allowedTables) > 0 {
		allowed := make(map[string]bool, len(allowedTables))
		for _, t := range allowedTables {
			allowed[t] = true
		}
		for _, match := range fromPattern.FindAllStringSubmatch(trimmed, -1) {
			table := match[1]
			if !allowed[table] {
				errs = append(errs, fmt.Sprintf("invalid table name: %s (allowed: %s)",
					table, strings.Join(allowedTables, ", ")))
			}
		}
	}

	validated := trimmed
	if !strings.Contains(normalized, "LIMIT") {
		validated = fmt.Sprintf("%s LIMIT %d", validated, defaultLimit)
	}

	return ValidationResult{
		IsValid:      len(errs) == 0,
		Errors:       errs,
		ValidatedSQL: validated,
	}
}

// CleanSQL strips Markdown code-fence wrappers the LLM may emit around
// its SQL and trims surrounding whitespace.
func CleanSQL(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// stripTrailingSemicolon removes one trailing semicolon and any
// whitespace around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}

// hasSemicolonOutsideStrings returns true if the SQL contains a semicolon
// outside of single- or double-quoted literals. After trailing-semicolon
// normalization, any remaining semicolon indicates a second statement.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handle both backslash escape (\') and SQL standard escape ('')
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}
