package tui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	out := buf.String()
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "|___/")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(40)
	require.NoError(t, err)

	out, err := render("Olá, **Ana**!")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")
}

func TestIsInteractive(t *testing.T) {
	assert.False(t, IsInteractive(nil))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsInteractive(f))
}
