package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdict_PlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	Verdict(&buf, true, "12 trials")
	Verdict(&buf, false, "2 issues")
	Stat(&buf, "hits", 10)

	out := buf.String()
	assert.Contains(t, out, " PASS  12 trials")
	assert.Contains(t, out, " FAIL  2 issues")
	assert.Contains(t, out, "hits")
	assert.NotContains(t, out, "\x1b[", "no escape codes for pipes")
	assert.False(t, IsTerminal(&buf))
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer(80)("# Audit report\n\n- ok")
	require.NoError(t, err)
	assert.Contains(t, out, "Audit report")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")
}
