package api

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"dawn chorus.wav", "dawn_chorus.wav"},
		{"Pöllö ääni.flac", "Pollo_aani.flac"},
		{"Crème brûlée.mp3", "Creme_brulee.mp3"},
		{"../../etc/passwd", "passwd"},
		{`C:\rec\site 1.wav`, "site_1.wav"},
		{".hidden.wav", "hidden.wav"},
		{"鳥.wav", "_.wav"},
		{"", "upload"},
		{"...", "upload"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	long := SanitizeFilename(strings.Repeat("a", 300) + ".wav")
	assert.Len(t, long, maxNameLength)
	assert.True(t, strings.HasSuffix(long, ".wav"))
}

func TestResolveResultFolder(t *testing.T) {
	t.Parallel()
	root := filepath.Join("data", "results")

	got, err := resolveResultFolder(root, "")
	require.NoError(t, err)
	assert.Equal(t, root, got)

	got, err = resolveResultFolder(root, "site/a/../b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "site", "b"), got)

	for _, bad := range []string{"..", "../x", "/abs", "a/../../x", "."} {
		_, err := resolveResultFolder(root, bad)
		assert.Error(t, err, bad)
	}
}
