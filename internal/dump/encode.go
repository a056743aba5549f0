package dump

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encode returns v as a SQL literal suitable for an INSERT ... VALUES list.
//
// Numbers are written unquoted in plain decimal notation, byte strings are single quoted with
// MySQL backslash escapes, DateTime is written as 'YYYY-MM-DD HH:MM:SS.ffffff' and Time as
// '[-]H:MM:SS.ffffff' with days folded into the hour count. A nil Value and non-finite floats,
// which no SQL column can hold, encode as NULL. Pointers to values encode as the value they
// point to, or NULL when nil. Encode panics on a Value defined outside this package, such as a
// struct embedding one of the value types.
func Encode(v Value) string {
	switch v := deref(v).(type) {
	case nil, Null:
		return "NULL"
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		return formatFloat(float64(v), 32)
	case Double:
		return formatFloat(float64(v), 64)
	case Bytes:
		return quoteBytes(v)
	case DateTime:
		return fmt.Sprintf("'%04d-%02d-%02d %02d:%02d:%02d.%06d'",
			v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, v.Microsecond)
	case Time:
		sign := ""
		if v.Negative {
			sign = "-"
		}

		return fmt.Sprintf("'%s%d:%02d:%02d.%06d'",
			sign, v.Days*24+v.Hours, v.Minutes, v.Seconds, v.Microsecond)
	default:
		panic(fmt.Sprintf("dump: unsupported value type %T", v))
	}
}

// EncodeRow encodes values and joins them into a parenthesized tuple.
func EncodeRow(values []Value) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(Encode(v))
	}

	b.WriteByte(')')
	return b.String()
}

func formatFloat(f float64, bitSize int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "NULL"
	}

	return strconv.FormatFloat(f, 'f', -1, bitSize)
}

// quoteBytes escapes backslash, single quote, newline, carriage return, NUL and Ctrl-Z, in that
// precedence, and wraps the result in single quotes. Each byte is rewritten at most once, which
// gives the same output as replacing backslashes before anything else.
func quoteBytes(b []byte) string {
	var out strings.Builder
	out.Grow(len(b) + 2)
	out.WriteByte('\'')
	for _, c := range b {
		switch c {
		case '\\':
			out.WriteString(`\\`)
		case '\'':
			out.WriteString(`\'`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case 0:
			out.WriteString(`\0`)
		case 0x1a:
			out.WriteString(`\Z`)
		default:
			out.WriteByte(c)
		}
	}

	out.WriteByte('\'')
	return out.String()
}
