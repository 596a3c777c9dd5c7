package codec

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

// writeWAV writes seconds of silence at rate as 16-bit mono PCM.
func writeWAV(t *testing.T, path string, rate int, seconds float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, int(float64(rate)*seconds)),
		Format:         &audio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestArtifactNames(t *testing.T) {
	t.Parallel()

	names := ArtifactNames("12_dawn", 3)
	assert.Equal(t, "12_dawn_3_audio.wav", names.AudioPath)
	assert.Equal(t, "12_dawn_3_spec_display_.png", names.DisplayImagePath)
	assert.Equal(t, "12_dawn_3_spec_training_.png", names.TrainingImagePath)

	assert.True(t, IsTrainingImage("/r/12_dawn_3_spec_training_.png"))
	assert.False(t, IsTrainingImage(names.DisplayImagePath))
	assert.True(t, IsDisplayImage(names.DisplayImagePath))
	assert.True(t, IsAudioFile(names.AudioPath))
	assert.True(t, IsAudioFile("x.FLAC"))
	assert.False(t, IsAudioFile(names.TrainingImagePath))

	assert.Equal(t, "12_dawn", BaseName("/uploads/12_dawn.flac"))
}

func TestRenderParamsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, RenderParams{Channels: ChannelsMono, SpecType: SpecMel}.Validate())
	require.NoError(t, RenderParams{SampleRate: 22050, Channels: ChannelsStereo, SpecType: SpecLinear}.Validate())

	for _, p := range []RenderParams{
		{SampleRate: -1, Channels: ChannelsMono, SpecType: SpecMel},
		{Channels: "quad", SpecType: SpecMel},
		{Channels: ChannelsMono, SpecType: "cqt"},
	} {
		require.ErrorIs(t, p.Validate(), errors.ErrInvalidParameter)
	}
}

func TestClipArgs(t *testing.T) {
	t.Parallel()

	w := segmentation.Window{Index: 2, Start: 2, End: 4}
	args := clipArgs("in.flac", "out.wav", w, RenderParams{SampleRate: 16000, Channels: ChannelsMono})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-ss 2.000 -t 2.000 -i in.flac")
	assert.Contains(t, joined, "-ar 16000")
	assert.Contains(t, joined, "-ac 1")
	assert.Equal(t, "out.wav", args[len(args)-1])

	stereo := strings.Join(clipArgs("in.flac", "out.wav", w, RenderParams{Channels: ChannelsStereo}), " ")
	assert.Contains(t, stereo, "-ac 2")
	assert.NotContains(t, stereo, "-ar")
}

func TestSpectrogramArgs(t *testing.T) {
	t.Parallel()

	display := strings.Join(spectrogramArgs("a.wav", "d.png", 800, 400, true, SpecMel), " ")
	assert.Contains(t, display, "showspectrumpic=s=800x400:legend=1:fscale=log")

	training := strings.Join(spectrogramArgs("a.wav", "t.png", 224, 224, false, SpecLinear), " ")
	assert.Contains(t, training, "showspectrumpic=s=224x224:legend=0:fscale=lin")
	assert.Contains(t, training, "-frames:v 1 t.png")
}

func TestNativeDurationWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rec.wav")
	writeWAV(t, path, 8000, 5)

	seconds, ok, err := nativeDuration(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 5.0, seconds, 0.01)

	_, ok, err = nativeDuration(filepath.Join(t.TempDir(), "rec.mp3"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDurationWithoutProbeFailsForOtherFormats(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rec.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o600))

	f := &FFmpeg{logger: logger.NewConsoleLogger("codec_test", logger.LogLevelError)}
	_, err := f.Duration(context.Background(), path)
	require.ErrorIs(t, err, errors.ErrExternalComponent)
}

func TestRenderSegmentWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "rec.wav")
	writeWAV(t, src, 16000, 5)

	f, err := NewFFmpeg(&conf.CodecSettings{DisplayWidth: 320, DisplayHeight: 160, TrainingSize: 64},
		logger.NewConsoleLogger("codec_test", logger.LogLevelError))
	require.NoError(t, err)

	windows, err := segmentation.Plan(5, segmentation.Params{SegmentLength: 2, Overlap: 0.5})
	require.NoError(t, err)
	require.Len(t, windows, 4)

	out, err := f.RenderSegment(context.Background(), src, filepath.Join(dir, "out"), "1_rec", windows[2], RenderParams{Channels: ChannelsMono, SpecType: SpecMel})
	require.NoError(t, err)
	assert.FileExists(t, out.AudioPath)
	assert.FileExists(t, out.DisplayImagePath)
	assert.FileExists(t, out.TrainingImagePath)

	seconds, err := f.Duration(context.Background(), out.AudioPath)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, seconds, 0.05)
}
