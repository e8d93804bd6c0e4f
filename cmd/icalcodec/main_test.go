package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `events:
  - uid: TEST-UID
    summary: Hello World
    start:
      value: "2020-05-09T11:00:00"
      timezone: Europe/Berlin
    end:
      value: "2020-05-09T12:00:00"
      timezone: Europe/Berlin
    stamp: "1970-01-01T00:00:00Z"
    attendees:
      - address: thomas@bartelmess.io
        cn: Thomas Bartelmess
`

func TestEncodeDecodeCheck(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("product_id: -//CLI Test//EN\n"), 0o600))
	icsPath := filepath.Join(dir, "out.ics")

	code := run([]string{"-config", cfgPath, "-log-level", "error", "encode", "-out", icsPath}, strings.NewReader(doc), &bytes.Buffer{})
	require.Equal(t, 0, code)

	raw, err := os.ReadFile(icsPath)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "PRODID:-//CLI Test//EN\r\n")
	assert.Contains(t, text, "BEGIN:VTIMEZONE\r\n")
	assert.Contains(t, text, "ATTENDEE;CN=Thomas Bartelmess:mailto:thomas@bartelmess.io\r\n")

	var out bytes.Buffer
	code = run([]string{"-config", cfgPath, "-log-level", "error", "check", "-in", icsPath}, nil, &out)
	require.Equal(t, 0, code)
	assert.Equal(t, "ok: 1 events\n", out.String())

	out.Reset()
	code = run([]string{"-log-level", "error", "decode"}, bytes.NewReader(raw), &out)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "uid: TEST-UID")
	assert.Contains(t, out.String(), "timezone: Europe/Berlin")
	assert.Contains(t, out.String(), "cn: Thomas Bartelmess")
}

func TestRunUsageErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 2, run([]string{"-log-level", "error"}, nil, &out))
	assert.Equal(t, 2, run([]string{"-log-level", "error", "transmogrify"}, nil, &out))
	assert.Equal(t, 1, run([]string{"-log-level", "error", "decode"}, strings.NewReader("BEGIN:VCALENDAR\r\n"), &out))
	assert.Empty(t, out.String())
}
