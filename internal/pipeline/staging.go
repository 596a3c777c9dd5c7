package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/inference"
)

// StageModel copies an uploaded model, and optionally its class manifest,
// into a fresh directory <tempDir>/<timestamp>_<job>_<uuid>/ and returns the
// staged model path. The model name must carry a supported extension.
// AutoLabel removes the staged files when it finishes.
func StageModel(tempDir string, jobID uint, name string, model io.Reader, manifest io.Reader) (string, error) {
	name = filepath.Base(name)
	if _, err := inference.DetectVariant(name); err != nil {
		return "", err
	}

	dir := filepath.Join(tempDir, fmt.Sprintf("%s_%d_%s", time.Now().Format("20060102T150405"), jobID, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", stageError(err, dir)
	}

	modelPath := filepath.Join(dir, name)
	if err := writeStaged(modelPath, model); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	if manifest != nil {
		if err := writeStaged(inference.ManifestPath(modelPath), manifest); err != nil {
			_ = os.RemoveAll(dir)
			return "", err
		}
	}
	return modelPath, nil
}

func writeStaged(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return stageError(err, path)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return stageError(err, path)
	}
	if err := f.Close(); err != nil {
		return stageError(err, path)
	}
	return nil
}

func stageError(err error, path string) error {
	return errors.New(err).
		Component("pipeline").
		Category(errors.CategoryFileIO).
		Context("operation", "stage-model").
		FileContext(path).
		Build()
}
