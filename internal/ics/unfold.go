package ics

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// LogicalLine is an unfolded content line and the physical line it starts on.
type LogicalLine struct {
	Line int
	Text string
}

// Record is a tokenized content line.
type Record struct {
	Line   int
	Name   string
	Params []Param
	// Value is the unescaped value; Raw is the value as it appeared on the
	// wire. Non-TEXT values (date-times, URIs, recurrence rules) use Raw.
	Value string
	Raw   string
}

// Param returns the first value of the named parameter.
func (r Record) Param(name string) (string, bool) {
	for _, p := range r.Params {
		if strings.EqualFold(p.Name, name) && len(p.Values) > 0 {
			return p.Values[0], true
		}
	}
	return "", false
}

// Unfold joins continuation lines. A physical line starting with a space or
// horizontal tab continues the previous one; exactly one whitespace
// character is removed. CRLF and bare LF endings are both accepted and blank
// lines are skipped.
func Unfold(r io.Reader) ([]LogicalLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		out     []LogicalLine
		current strings.Builder
		startAt int
		lineNo  int
		open    bool
	)
	flush := func() {
		if open {
			out = append(out, LogicalLine{Line: startAt, Text: current.String()})
			current.Reset()
			open = false
		}
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if !open {
				return nil, decodeErr(lineNo, "", errors.Wrap(ErrMalformedLine, "continuation without a preceding line"))
			}
			current.WriteString(line[1:])
			continue
		}
		flush()
		current.WriteString(line)
		startAt = lineNo
		open = true
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "ics: read input")
	}
	flush()
	return out, nil
}

// Tokenize splits a logical line into name, parameters and value. The name
// ends at the first ';' or ':'; the value starts after the first colon that
// is not inside a quoted parameter value.
func Tokenize(l LogicalLine) (Record, error) {
	s := l.Text
	rec := Record{Line: l.Line}

	i := strings.IndexAny(s, ";:")
	if i < 0 {
		return rec, decodeErr(l.Line, "", errors.Wrapf(ErrMalformedLine, "no colon in %q", truncate(s)))
	}
	rec.Name = strings.ToUpper(strings.TrimSpace(s[:i]))
	if rec.Name == "" {
		return rec, decodeErr(l.Line, "", errors.Wrapf(ErrMalformedLine, "empty property name in %q", truncate(s)))
	}

	for s[i] == ';' {
		p, next, err := parseParam(s, i+1)
		if err != nil {
			return rec, decodeErr(l.Line, rec.Name, err)
		}
		rec.Params = append(rec.Params, p)
		if next >= len(s) {
			return rec, decodeErr(l.Line, rec.Name, errors.Wrap(ErrMalformedLine, "no colon after parameters"))
		}
		i = next
	}

	rec.Raw = s[i+1:]
	rec.Value = UnescapeText(rec.Raw)
	return rec, nil
}

// parseParam reads NAME=V1,V2 starting at i and returns the index of the
// delimiter (';' or ':') that ended it.
func parseParam(s string, i int) (Param, int, error) {
	eq := strings.IndexAny(s[i:], "=;:")
	if eq < 0 || s[i+eq] != '=' {
		return Param{}, 0, errors.Wrapf(ErrMalformedParameter, "parameter without '=' in %q", truncate(s))
	}
	p := Param{Name: strings.ToUpper(strings.TrimSpace(s[i : i+eq]))}
	if p.Name == "" {
		return Param{}, 0, errors.Wrapf(ErrMalformedParameter, "empty parameter name in %q", truncate(s))
	}

	j := i + eq + 1
	for {
		var v string
		if j < len(s) && s[j] == '"' {
			end := strings.IndexByte(s[j+1:], '"')
			if end < 0 {
				return Param{}, 0, errors.Wrapf(ErrMalformedParameter, "unterminated quoted value for %s", p.Name)
			}
			v = s[j+1 : j+1+end]
			j = j + 1 + end + 1
		} else {
			k := j
			for k < len(s) && s[k] != ',' && s[k] != ';' && s[k] != ':' {
				if s[k] == '"' {
					return Param{}, 0, errors.Wrapf(ErrMalformedParameter, "stray quote in value for %s", p.Name)
				}
				k++
			}
			v = s[j:k]
			j = k
		}
		p.Values = append(p.Values, decodeParam(v))

		if j >= len(s) {
			return p, j, nil
		}
		switch s[j] {
		case ',':
			j++
		case ';', ':':
			return p, j, nil
		default:
			return Param{}, 0, errors.Wrapf(ErrMalformedParameter, "unexpected %q after value for %s", s[j], p.Name)
		}
	}
}

func truncate(s string) string {
	const max = 40
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
