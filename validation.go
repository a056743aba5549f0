package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shakram02/go-mysql-dump-mcp/internal/script"
)

// writeKeywords are DML/DDL keywords blocked by all databases in read-only mode. Imports bypass
// this check entirely and run through the restore path instead.
var writeKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE"}

var writeKeywordPatterns = compileKeywords(writeKeywords)

var setStatementPattern = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)

// allowedPrefixes are the statement heads accepted by the query tool.
var allowedPrefixes = []string{"SELECT ", "SHOW ", "DESCRIBE ", "DESC ", "EXPLAIN "}

func compileKeywords(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])`+kw+`(?:[^a-zA-Z_]|$)`))
	}

	return patterns
}

// validateCommon runs validation checks shared across all database types.
// sqlQuery is the original query; cleanedSQL has strings/comments removed. Statement counting
// needs the engine's lexical rules and happens in queryPolicy.validate.
func validateCommon(sqlQuery string, cleanedSQL string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}

	upper := strings.ToUpper(trimmed)

	// Must start with an allowed prefix
	hasAllowedPrefix := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(upper, prefix) || upper == strings.TrimSpace(prefix) {
			hasAllowedPrefix = true
			break
		}
	}
	if !hasAllowedPrefix {
		return fmt.Errorf("only SELECT, SHOW, DESCRIBE, and EXPLAIN queries are allowed")
	}

	for i, re := range writeKeywordPatterns {
		if re.MatchString(cleanedSQL) {
			return fmt.Errorf("query contains forbidden keyword: %s", writeKeywords[i])
		}
	}

	// Block SET statements (but not column/table names containing 'set')
	if setStatementPattern.MatchString(cleanedSQL) {
		return fmt.Errorf("SET statements are not allowed")
	}

	return nil
}

// denyRule rejects queries whose masked text matches re.
type denyRule struct {
	re   *regexp.Regexp
	what string
}

func deny(pattern, what string) denyRule {
	return denyRule{re: regexp.MustCompile(`(?i)` + pattern), what: what}
}

// calls denies invoking any of the named functions.
func calls(names ...string) []denyRule {
	rules := make([]denyRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, deny(`\b`+regexp.QuoteMeta(name)+`\s*\(`, "function: "+name+"()"))
	}

	return rules
}

// queryPolicy is the engine specific half of read-only validation. Everything is compiled
// once, when the adapter's policy variable is initialized.
type queryPolicy struct {
	dialect  script.Dialect
	keywords []string
	patterns []*regexp.Regexp
	rules    []denyRule
}

func newQueryPolicy(d script.Dialect, keywords []string, rules ...[]denyRule) *queryPolicy {
	p := &queryPolicy{dialect: d, keywords: keywords, patterns: compileKeywords(keywords)}
	for _, r := range rules {
		p.rules = append(p.rules, r...)
	}

	return p
}

// validate checks that sqlQuery is a single read-only statement. The statement count comes from
// the same splitter import uses, and keyword and function checks run on the query masked with
// the engine's lexical rules, so literals and comments never trigger them.
func (p *queryPolicy) validate(sqlQuery string) error {
	if len(script.SplitDialect(sqlQuery, p.dialect)) > 1 {
		return fmt.Errorf("multiple statements are not allowed")
	}

	cleaned := script.Mask(sqlQuery, p.dialect)
	if err := validateCommon(sqlQuery, cleaned); err != nil {
		return err
	}

	for _, r := range p.rules {
		if r.re.MatchString(cleaned) {
			return fmt.Errorf("query contains forbidden %s", r.what)
		}
	}

	for i, re := range p.patterns {
		if re.MatchString(cleaned) {
			return fmt.Errorf("query contains forbidden keyword: %s", p.keywords[i])
		}
	}

	return nil
}
