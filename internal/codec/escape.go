package codec

import (
	"encoding/hex"
	"strings"
)

// EscapeString renders s as a quoted SQL string literal for contexts where
// parameter binding is unavailable, e.g. DDL. Backslash-escapes the usual
// suspects and wraps the result in single quotes.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\b':
			b.WriteString(`\b`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// EscapeBinary renders data as a hex literal (X'...').
func EscapeBinary(data []byte) string {
	return "X'" + hex.EncodeToString(data) + "'"
}
