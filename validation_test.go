package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommon_Allowed(t *testing.T) {
	queries := []string{
		"SELECT 1",
		"select * from users",
		"SHOW TABLES",
		"DESCRIBE users",
		"DESC users",
		"EXPLAIN SELECT * FROM users",
		"SELECT 1;",
		"SELECT reset_at FROM jobs",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			assert.NoError(t, validateCommon(q, q))
		})
	}
}

func TestValidateCommon_Blocked(t *testing.T) {
	tests := []struct {
		query   string
		message string
	}{
		{"", "empty query"},
		{"  \n ", "empty query"},
		{"WITH x AS (SELECT 1) SELECT * FROM x", "only SELECT"},
		{"SELECT 1 FROM t WHERE x IN (DELETE FROM t)", "DELETE"},
		{"SELECT 1 FROM t; SET autocommit = 0", "SET statements"},
		{"SHOW TABLES FROM x UNION CREATE", "CREATE"},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			err := validateCommon(tc.query, tc.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

// The cleaned text decides keyword checks, the raw query decides the prefix.
func TestValidateCommon_UsesCleanedText(t *testing.T) {
	q := "SELECT 'DROP TABLE x; DELETE'"
	assert.NoError(t, validateCommon(q, "SELECT ''"))
	assert.Error(t, validateCommon(q, q))
}

func TestCompileKeywords(t *testing.T) {
	patterns := compileKeywords([]string{"DROP"})
	require.Len(t, patterns, 1)

	assert.True(t, patterns[0].MatchString("drop table x"))
	assert.True(t, patterns[0].MatchString("x;DROP"))
	assert.False(t, patterns[0].MatchString("SELECT dropped FROM t"))
	assert.False(t, patterns[0].MatchString("SELECT raindrop FROM t"))
}

func TestMySQLValidateQuery_SplitterAgreesOnComments(t *testing.T) {
	adapter := &MySQLAdapter{}

	assert.NoError(t, adapter.ValidateQuery("SELECT '--;' AS a"))
	assert.NoError(t, adapter.ValidateQuery("SELECT 1 /* ; */ FROM dual"))
	assert.NoError(t, adapter.ValidateQuery("SELECT 'it''s;' AS a"))
	assert.NoError(t, adapter.ValidateQuery("SELECT 'a\\';' AS a"))

	err := adapter.ValidateQuery("SELECT 1;\n# note\nSELECT 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple statements")

	// "--" without a following space is subtraction, so the rest is a second statement.
	err = adapter.ValidateQuery("SELECT 1--1; DROP TABLE users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple statements")
}

func TestQueryPolicy_StatementCount(t *testing.T) {
	tests := []struct {
		name   string
		policy *queryPolicy
		query  string
	}{
		{"mysql backtick", mysqlPolicy, "SELECT `a;b` FROM t"},
		{"postgres quoted identifier", postgresPolicy, `SELECT "a;b" FROM t`},
		{"sqlite bracket", sqlitePolicy, "SELECT [a;b] FROM t"},
		{"trailing semicolons", mysqlPolicy, "SELECT 1;;  ;"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, tc.policy.validate(tc.query))
		})
	}

	err := sqlitePolicy.validate("SELECT 1; SELECT 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple statements")
}
