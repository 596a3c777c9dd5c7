package cliutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	t.Parallel()

	out := RenderTable([]string{"ID", "Name", "Count"}, [][]string{
		{"1", "wren", "12"},
		{"2", "blackbird"},
	}, []Align{AlignRight, AlignLeft, AlignRight})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "╭"))
	assert.Contains(t, lines[1], "ID")
	assert.Contains(t, lines[3], "wren")
	assert.Contains(t, lines[4], "blackbird")

	assert.Empty(t, RenderTable(nil, [][]string{{"x"}}, nil))
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatPercent(t *testing.T) {
	t.Parallel()
	v := 0.8123
	assert.Equal(t, "81.23%", FormatPercent(&v))
	assert.Equal(t, "n/a", FormatPercent(nil))
}
