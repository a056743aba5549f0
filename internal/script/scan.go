package script

import "strings"

// Dialect describes the lexical rules of one SQL engine.
type Dialect struct {
	// HashComments makes "#" start a line comment.
	HashComments bool
	// SpacedDashComments requires whitespace, a control character or the end of input after
	// "--" for it to start a line comment. Otherwise "--" always does.
	SpacedDashComments bool
	// BackslashEscapes makes a backslash inside quotes escape the next byte.
	BackslashEscapes bool
	// DoubleQuotedStrings makes "..." a string literal rather than an identifier.
	DoubleQuotedStrings bool
	// Backticks makes `...` a quoted identifier.
	Backticks bool
	// BracketIdentifiers makes [...] a quoted identifier.
	BracketIdentifiers bool
	// DollarQuotes makes $$...$$ and $tag$...$tag$ string literals.
	DollarQuotes bool
}

var (
	MySQL = Dialect{
		HashComments:        true,
		SpacedDashComments:  true,
		BackslashEscapes:    true,
		DoubleQuotedStrings: true,
		Backticks:           true,
	}

	PostgreSQL = Dialect{
		DollarQuotes: true,
	}

	SQLite = Dialect{
		Backticks:          true,
		BracketIdentifiers: true,
	}
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokLineComment
	tokBlockComment
	tokString
	tokIdent
	tokSemicolon
)

// scanner cuts SQL text into tokens. Line comment tokens stop before their newline.
// Unterminated comments, strings and identifiers run to the end of input.
type scanner struct {
	src string
	pos int
	d   Dialect
}

// scan reports every token of text, in order, to emit. The tokens cover text exactly.
func scan(text string, d Dialect, emit func(kind tokenKind, tok string)) {
	s := &scanner{src: text, d: d}
	for s.pos < len(s.src) {
		start := s.pos
		kind := s.next()
		emit(kind, s.src[start:s.pos])
	}
}

func (s *scanner) at(i int) byte {
	if i >= len(s.src) {
		return 0
	}

	return s.src[i]
}

func (s *scanner) next() tokenKind {
	switch c := s.src[s.pos]; {
	case c == ';':
		s.pos++
		return tokSemicolon
	case c == '#' && s.d.HashComments, c == '-' && s.dashComment():
		s.skipLine()
		return tokLineComment
	case c == '/' && s.at(s.pos+1) == '*':
		s.skipBlock()
		return tokBlockComment
	case c == '\'':
		s.skipQuoted(c, s.d.BackslashEscapes)
		return tokString
	case c == '"' && s.d.DoubleQuotedStrings:
		s.skipQuoted(c, s.d.BackslashEscapes)
		return tokString
	case c == '"':
		s.skipQuoted(c, false)
		return tokIdent
	case c == '`' && s.d.Backticks:
		s.skipQuoted(c, s.d.BackslashEscapes)
		return tokIdent
	case c == '[' && s.d.BracketIdentifiers:
		s.skipTo("]")
		return tokIdent
	case c == '$' && s.d.DollarQuotes:
		if tag := s.dollarTag(); tag != "" {
			s.pos += len(tag)
			s.skipTo(tag)
			return tokString
		}
	}

	s.pos++
	for s.pos < len(s.src) && !s.special(s.src[s.pos]) {
		s.pos++
	}

	return tokText
}

// special reports whether c may start a token other than plain text.
func (s *scanner) special(c byte) bool {
	switch c {
	case ';', '-', '/', '\'', '"', '#', '`', '[', '$':
		return true
	}

	return false
}

// dashComment reports whether the "-" at the scan position opens a comment.
func (s *scanner) dashComment() bool {
	if s.at(s.pos+1) != '-' {
		return false
	}

	if !s.d.SpacedDashComments || s.pos+2 >= len(s.src) {
		return true
	}

	return s.src[s.pos+2] <= ' '
}

func (s *scanner) skipLine() {
	if i := strings.IndexByte(s.src[s.pos:], '\n'); i >= 0 {
		s.pos += i
		return
	}

	s.pos = len(s.src)
}

func (s *scanner) skipBlock() {
	s.pos += 2
	s.skipTo("*/")
}

// skipTo moves past the next occurrence of end, or to the end of input.
func (s *scanner) skipTo(end string) {
	if i := strings.Index(s.src[s.pos:], end); i >= 0 {
		s.pos += i + len(end)
		return
	}

	s.pos = len(s.src)
}

// skipQuoted moves past a quoted run opened by q. A doubled q stays inside the run.
func (s *scanner) skipQuoted(q byte, backslash bool) {
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++

		if backslash && c == '\\' {
			if s.pos < len(s.src) {
				s.pos++
			}
			continue
		}

		if c != q {
			continue
		}

		if s.at(s.pos) == q {
			s.pos++
			continue
		}

		return
	}
}

// dollarTag returns the opening "$tag$" at the scan position, or "" when there is none.
// Tags follow identifier rules, so positional parameters such as $1 are not tags.
func (s *scanner) dollarTag() string {
	for i := s.pos + 1; i < len(s.src); i++ {
		c := s.src[i]
		switch {
		case c == '$':
			return s.src[s.pos : i+1]
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= 0x80:
		case c >= '0' && c <= '9' && i > s.pos+1:
		default:
			return ""
		}
	}

	return ""
}
