// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Set at build time:
//
//	go build -ldflags "-X github.com/tphakala/segmentlab/internal/buildinfo.Version=v1.2.0"
var (
	Version   = ""
	BuildDate = ""
)

// Info is the metadata of the running binary.
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Current returns the metadata of this binary with unset values replaced
// by UnknownValue.
func Current() Info {
	return Info{
		Version:   orUnknown(Version),
		BuildDate: orUnknown(BuildDate),
		GoVersion: runtime.Version(),
	}
}

// Release is the identifier reported to error telemetry.
func (i Info) Release() string {
	return "segmentlab@" + i.Version
}

func (i Info) String() string {
	return fmt.Sprintf("segmentlab %s (built %s, %s)", i.Version, i.BuildDate, i.GoVersion)
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}
