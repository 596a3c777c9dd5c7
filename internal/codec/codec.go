// Package codec renders audio segments into the three artifacts a segment
// carries: a clip, a display spectrogram and a training spectrogram.
package codec

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

// Spectrogram frequency scales.
const (
	SpecMel    = "mel"
	SpecLinear = "linear"
)

// Channel modes.
const (
	ChannelsMono   = "mono"
	ChannelsStereo = "stereo"
)

// Artifact file name markers. Export and dataset code route files by them.
const (
	AudioSuffix         = "_audio.wav"
	DisplayMarker       = "_spec_display_"
	TrainingMarker      = "_spec_training_"
	displayImageSuffix  = DisplayMarker + ".png"
	trainingImageSuffix = TrainingMarker + ".png"
)

// RenderParams are the per-job rendering options.
type RenderParams struct {
	SampleRate int    // 0 keeps the source rate
	Channels   string // mono or stereo
	SpecType   string // mel or linear
}

// Validate checks the option values.
func (p RenderParams) Validate() error {
	if p.SampleRate < 0 {
		return errors.ValidationError(fmt.Sprintf("sample rate must not be negative, got %d", p.SampleRate))
	}
	switch p.Channels {
	case ChannelsMono, ChannelsStereo:
	default:
		return errors.ValidationError(fmt.Sprintf("channels must be %q or %q, got %q", ChannelsMono, ChannelsStereo, p.Channels))
	}
	switch p.SpecType {
	case SpecMel, SpecLinear:
	default:
		return errors.ValidationError(fmt.Sprintf("spectrogram type must be %q or %q, got %q", SpecMel, SpecLinear, p.SpecType))
	}
	return nil
}

// Artifacts are the files written for one window. AudioPath is empty when
// no clip was kept.
type Artifacts struct {
	AudioPath         string
	DisplayImagePath  string
	TrainingImagePath string
}

// Service renders segments of a source recording.
type Service interface {
	// Duration returns the length of the recording in seconds.
	Duration(ctx context.Context, audioPath string) (float64, error)

	// RenderSegment writes the artifacts of window w into outDir, naming
	// files after base and the window index.
	RenderSegment(ctx context.Context, audioPath, outDir, base string, w segmentation.Window, p RenderParams) (Artifacts, error)
}

// ArtifactNames returns the file names used for window index i.
func ArtifactNames(base string, i int) Artifacts {
	prefix := fmt.Sprintf("%s_%d", base, i)
	return Artifacts{
		AudioPath:         prefix + AudioSuffix,
		DisplayImagePath:  prefix + displayImageSuffix,
		TrainingImagePath: prefix + trainingImageSuffix,
	}
}

// BaseName derives the artifact base from a stored upload name.
func BaseName(sourcePath string) string {
	name := filepath.Base(sourcePath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsTrainingImage reports whether name is a training spectrogram.
func IsTrainingImage(name string) bool {
	return strings.Contains(filepath.Base(name), TrainingMarker)
}

// IsDisplayImage reports whether name is a display spectrogram.
func IsDisplayImage(name string) bool {
	return strings.Contains(filepath.Base(name), DisplayMarker)
}

// IsAudioFile reports whether name has an audio extension.
func IsAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".flac", ".mp3", ".ogg", ".m4a", ".aac", ".opus":
		return true
	}
	return false
}
