package codec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
)

// nativeDuration reads the duration from WAV or FLAC headers. ok is false
// when the format is not handled natively.
func nativeDuration(audioPath string) (seconds float64, ok bool, err error) {
	ext := strings.ToLower(filepath.Ext(audioPath))
	if ext != ".wav" && ext != ".flac" {
		return 0, false, nil
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return 0, true, err
	}
	defer file.Close()

	switch ext {
	case ".wav":
		decoder := wav.NewDecoder(file)
		decoder.ReadInfo()
		if !decoder.IsValidFile() {
			return 0, false, nil
		}
		d, err := decoder.Duration()
		if err != nil {
			return 0, false, nil
		}
		return d.Seconds(), true, nil
	default:
		decoder, err := flac.NewDecoder(file)
		if err != nil || decoder.SampleRate <= 0 || decoder.TotalSamples == 0 {
			return 0, false, nil
		}
		return float64(decoder.TotalSamples) / float64(decoder.SampleRate), true, nil
	}
}

// probeDuration asks ffprobe for the container duration.
func probeDuration(ctx context.Context, ffprobePath, audioPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}
