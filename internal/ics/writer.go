package ics

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const (
	// maxLineOctets bounds a physical line, excluding the CRLF terminator.
	maxLineOctets = 75
	crlf          = "\r\n"
)

// Param is one property parameter. Multiple values are joined by commas.
type Param struct {
	Name   string
	Values []string
}

// Property is one logical content line. Value is already in wire form:
// TEXT values must be passed through EscapeText by the caller.
type Property struct {
	Name   string
	Params []Param
	Value  string
}

// Param returns the first value of the named parameter.
func (p Property) Param(name string) (string, bool) {
	for _, prm := range p.Params {
		if strings.EqualFold(prm.Name, name) && len(prm.Values) > 0 {
			return prm.Values[0], true
		}
	}
	return "", false
}

// ContentLine renders p as NAME;PARAM=V:VALUE without folding.
func ContentLine(p Property) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(p.Name))
	for _, prm := range p.Params {
		b.WriteByte(';')
		b.WriteString(strings.ToUpper(prm.Name))
		b.WriteByte('=')
		for i, v := range prm.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteParam(v))
		}
	}
	b.WriteByte(':')
	b.WriteString(p.Value)
	return b.String()
}

// Fold splits a content line into physical lines of at most 75 octets,
// each terminated by CRLF. Continuation lines start with a single space that
// counts toward the limit. A UTF-8 sequence or a backslash escape pair is
// never split.
func Fold(line string) string {
	if len(line) <= maxLineOctets {
		return line + crlf
	}

	var b strings.Builder
	b.Grow(len(line) + len(line)/maxLineOctets*3 + len(crlf))

	width := 0
	limit := maxLineOctets
	for i := 0; i < len(line); {
		n := unitLen(line, i)
		if width+n > limit {
			b.WriteString(crlf)
			b.WriteByte(' ')
			width = 1
		}
		b.WriteString(line[i : i+n])
		width += n
		i += n
	}
	b.WriteString(crlf)
	return b.String()
}

// unitLen is the octet length of the indivisible unit starting at i: a
// backslash with the character it escapes, or one UTF-8 encoded rune.
func unitLen(s string, i int) int {
	if s[i] == '\\' && i+1 < len(s) {
		_, size := utf8.DecodeRuneInString(s[i+1:])
		return 1 + size
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return size
}

// lineWriter accumulates folded content lines in memory.
type lineWriter struct {
	buf bytes.Buffer
}

func (w *lineWriter) property(p Property) {
	w.buf.WriteString(Fold(ContentLine(p)))
}

func (w *lineWriter) text(name, value string, params ...Param) {
	w.property(Property{Name: name, Params: params, Value: EscapeText(value)})
}

func (w *lineWriter) raw(name, value string, params ...Param) {
	w.property(Property{Name: name, Params: params, Value: value})
}

func (w *lineWriter) begin(component string) {
	w.raw("BEGIN", component)
}

func (w *lineWriter) end(component string) {
	w.raw("END", component)
}

func (w *lineWriter) Bytes() []byte {
	return w.buf.Bytes()
}
