package ics

import (
	"strings"
)

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
	`;`, `\;`,
	`,`, `\,`,
)

// EscapeText encodes a TEXT value: backslash, semicolon, comma and newline
// get a leading backslash. CRLF and lone CR become \n, since TEXT has no
// escape for CR; UnescapeText(EscapeText(s)) == s holds when s has no CR.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// UnescapeText reverses EscapeText. \N is accepted for newline and an
// unknown escape keeps the escaped character. A trailing lone backslash is
// kept as is.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// needsQuoting reports whether a parameter value must be wrapped in DQUOTE.
func needsQuoting(v string) bool {
	return strings.ContainsAny(v, `,;:"`)
}

var paramEncoder = strings.NewReplacer(
	`^`, `^^`,
	"\r\n", `^n`,
	"\n", `^n`,
	`"`, `^'`,
)

// quoteParam renders a parameter value, caret-encoding characters that may
// not appear in a parameter (RFC 6868) and quoting only when required.
func quoteParam(v string) string {
	needQuote := needsQuoting(v)
	enc := paramEncoder.Replace(v)
	if needQuote {
		return `"` + enc + `"`
	}
	return enc
}

// decodeParam reverses the RFC 6868 caret encoding.
func decodeParam(v string) string {
	if !strings.Contains(v, "^") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '^' || i+1 == len(v) {
			b.WriteByte(v[i])
			continue
		}
		switch v[i+1] {
		case '^':
			b.WriteByte('^')
		case 'n':
			b.WriteByte('\n')
		case '\'':
			b.WriteByte('"')
		default:
			// Not an escape; keep both characters.
			b.WriteByte('^')
			b.WriteByte(v[i+1])
		}
		i++
	}
	return b.String()
}
