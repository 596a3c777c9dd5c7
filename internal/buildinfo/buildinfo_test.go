package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	oldVersion, oldDate := Version, BuildDate
	t.Cleanup(func() { Version, BuildDate = oldVersion, oldDate })

	tests := []struct {
		name      string
		version   string
		buildDate string
		want      Info
	}{
		{
			name: "unset",
			want: Info{Version: UnknownValue, BuildDate: UnknownValue, GoVersion: runtime.Version()},
		},
		{
			name:      "injected",
			version:   "v1.0.0-beta.1",
			buildDate: "2024-05-01",
			want:      Info{Version: "v1.0.0-beta.1", BuildDate: "2024-05-01", GoVersion: runtime.Version()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, BuildDate = tt.version, tt.buildDate
			assert.Equal(t, tt.want, Current())
		})
	}
}

func TestRelease(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "segmentlab@v2.0.0", Info{Version: "v2.0.0"}.Release())
	assert.Contains(t, Info{Version: "v2.0.0", BuildDate: "today", GoVersion: "go1.26"}.String(), "v2.0.0 (built today, go1.26)")
}
