package script

import "strings"

// Mask returns text with every comment replaced by a single space and every string literal
// replaced by an empty one ('' or ""), using the lexical rules of d. Identifiers, semicolons
// and everything else are kept, so keyword and statement checks on the result cannot be
// fooled by literal content.
func Mask(text string, d Dialect) string {
	var b strings.Builder
	b.Grow(len(text))

	scan(text, d, func(kind tokenKind, tok string) {
		switch kind {
		case tokLineComment, tokBlockComment:
			b.WriteByte(' ')
		case tokString:
			if tok[0] == '"' {
				b.WriteString(`""`)
			} else {
				b.WriteString("''")
			}
		default:
			b.WriteString(tok)
		}
	})

	return b.String()
}
