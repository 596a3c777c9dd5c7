package codec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

const (
	defaultTimeout = 60 * time.Second

	// ffmpegGain and ffmpegDrange tune the showspectrumpic rendering.
	ffmpegGain   = "3"
	ffmpegDrange = "100"

	outputDirPermissions = 0o755
)

// FFmpeg renders segments by running ffmpeg and probes durations with
// ffprobe when the header cannot be read natively.
type FFmpeg struct {
	ffmpegPath    string
	ffprobePath   string
	timeout       time.Duration
	displayWidth  int
	displayHeight int
	trainingSize  int
	logger        logger.Logger
}

// NewFFmpeg resolves the tool paths from settings. A missing ffmpeg is an
// error; ffprobe is optional.
func NewFFmpeg(settings *conf.CodecSettings, log logger.Logger) (*FFmpeg, error) {
	if log == nil {
		log = GetLogger()
	}
	ffmpegPath, err := conf.ValidateToolPath(settings.FfmpegPath, conf.GetFfmpegBinaryName())
	if err != nil {
		return nil, errors.New(err).
			Component("codec").
			Category(errors.CategoryConfiguration).
			Build()
	}
	ffprobePath, err := conf.ValidateToolPath(settings.FfprobePath, conf.GetFfprobeBinaryName())
	if err != nil {
		log.Warn("ffprobe not available, only WAV and FLAC durations can be read", logger.Error(err))
		ffprobePath = ""
	}

	f := &FFmpeg{
		ffmpegPath:    ffmpegPath,
		ffprobePath:   ffprobePath,
		timeout:       settings.Timeout,
		displayWidth:  settings.DisplayWidth,
		displayHeight: settings.DisplayHeight,
		trainingSize:  settings.TrainingSize,
		logger:        log,
	}
	if f.timeout <= 0 {
		f.timeout = defaultTimeout
	}
	return f, nil
}

// Duration implements Service.
func (f *FFmpeg) Duration(ctx context.Context, audioPath string) (float64, error) {
	seconds, ok, err := nativeDuration(audioPath)
	if err != nil {
		return 0, errors.New(err).
			Component("codec").
			Category(errors.CategoryFileIO).
			FileContext(audioPath).
			Build()
	}
	if ok {
		return seconds, nil
	}
	if f.ffprobePath == "" {
		return 0, errors.ExternalFailure("codec", fmt.Errorf("cannot read duration of %s without ffprobe", filepath.Base(audioPath)))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	seconds, err = probeDuration(ctx, f.ffprobePath, audioPath)
	if err != nil {
		return 0, errors.ExternalFailure("codec", err)
	}
	return seconds, nil
}

// RenderSegment implements Service. The clip is cut first and both
// spectrograms are rendered from it so every artifact covers the same window.
func (f *FFmpeg) RenderSegment(ctx context.Context, audioPath, outDir, base string, w segmentation.Window, p RenderParams) (Artifacts, error) {
	if err := os.MkdirAll(outDir, outputDirPermissions); err != nil {
		return Artifacts{}, errors.New(err).
			Component("codec").
			Category(errors.CategoryFileIO).
			Context("operation", "ensure_output_directory").
			Context("output_dir", outDir).
			Build()
	}

	names := ArtifactNames(base, w.Index)
	out := Artifacts{
		AudioPath:         filepath.Join(outDir, names.AudioPath),
		DisplayImagePath:  filepath.Join(outDir, names.DisplayImagePath),
		TrainingImagePath: filepath.Join(outDir, names.TrainingImagePath),
	}

	start := time.Now()
	steps := []struct {
		op   string
		args []string
	}{
		{"extract_clip", clipArgs(audioPath, out.AudioPath, w, p)},
		{"display_spectrogram", spectrogramArgs(out.AudioPath, out.DisplayImagePath, f.displayWidth, f.displayHeight, true, p.SpecType)},
		{"training_spectrogram", spectrogramArgs(out.AudioPath, out.TrainingImagePath, f.trainingSize, f.trainingSize, false, p.SpecType)},
	}
	for _, step := range steps {
		if err := f.run(ctx, step.op, step.args); err != nil {
			return Artifacts{}, err
		}
	}

	f.logger.Trace("segment rendered",
		logger.Int("index", w.Index),
		logger.String("window", w.String()),
		logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := createCommandWithNice(ctx, f.ffmpegPath, args)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%w)", err, ctxErr)
		}
		return errors.New(fmt.Errorf("%w: ffmpeg %s: %w", errors.ErrExternalComponent, op, err)).
			Component("codec").
			Category(errors.CategoryCommandExecution).
			Priority(errors.PriorityHigh).
			Context("operation", op).
			Context("ffmpeg_output", tail(output.String(), 2048)).
			Build()
	}
	return nil
}

// clipArgs cuts window w out of src as 16-bit PCM WAV.
func clipArgs(src, dst string, w segmentation.Window, p RenderParams) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(w.Start),
		"-t", formatSeconds(w.End - w.Start),
		"-i", src,
		"-vn",
	}
	if p.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.SampleRate))
	}
	channels := "1"
	if p.Channels == ChannelsStereo {
		channels = "2"
	}
	args = append(args, "-ac", channels, "-c:a", "pcm_s16le", dst)
	return args
}

// spectrogramArgs renders one spectrogram picture of src. Display images
// carry axes and legend; training images are bare so their size is exact.
func spectrogramArgs(src, dst string, width, height int, legend bool, specType string) []string {
	fscale := "log"
	if specType == SpecLinear {
		fscale = "lin"
	}
	legendFlag := 0
	if legend {
		legendFlag = 1
	}
	filter := fmt.Sprintf("showspectrumpic=s=%dx%d:legend=%d:fscale=%s:gain=%s:drange=%s",
		width, height, legendFlag, fscale, ffmpegGain, ffmpegDrange)
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-lavfi", filter,
		"-frames:v", "1",
		dst,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// createCommandWithNice lowers the priority of rendering work on Unix systems.
func createCommandWithNice(ctx context.Context, binary string, args []string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, binary, args...)
	}
	if nice, err := exec.LookPath("nice"); err == nil {
		return exec.CommandContext(ctx, nice, append([]string{"-n", "10", binary}, args...)...)
	}
	return exec.CommandContext(ctx, binary, args...)
}
