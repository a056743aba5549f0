// Package script cuts SQL text into statements and masks the literal parts of a query.
//
// Split follows MySQL lexical rules, the dialect dumps are written in: '...' and "..." strings
// and `...` identifiers with backslash and doubled-quote escapes, "#" and "-- " line comments,
// and non-nesting /* ... */ block comments. SplitDialect and Mask take the rules of another
// engine. The scanner never validates SQL and never fails.
package script

import "strings"

// Split returns the statements of text in order of appearance, each trimmed and non-empty.
// Statements are separated by semicolons that are neither quoted nor inside a comment; the
// separators themselves are dropped. Line comment text is dropped (its newline is kept) while
// block comments and quote characters stay in the statement text. A trailing statement without
// a terminating semicolon is still returned, whatever state the scan ended in.
func Split(text string) []string {
	return SplitDialect(text, MySQL)
}

// SplitDialect is Split under the lexical rules of d.
func SplitDialect(text string, d Dialect) []string {
	var (
		out []string
		buf strings.Builder
	)

	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			out = append(out, stmt)
		}
		buf.Reset()
	}

	scan(text, d, func(kind tokenKind, tok string) {
		switch kind {
		case tokSemicolon:
			flush()
		case tokLineComment:
		default:
			buf.WriteString(tok)
		}
	})

	flush()
	return out
}
