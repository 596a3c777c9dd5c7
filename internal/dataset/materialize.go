package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/logger"
)

// Subset directory names.
const (
	TrainDir = "train"
	ValDir   = "val"
)

// Stats counts what Materialize did.
type Stats struct {
	Copied  int
	Skipped int // missing source images
	Classes int
}

// Materialize copies every image of split into root. A missing source is
// logged and skipped; any other I/O error aborts. Progress is reported per
// file through sink. Labels whose class directories collide are rejected
// before anything is copied.
func Materialize(ctx context.Context, root string, split Split, sink jobstate.ProgressSink, log logger.Logger) (Stats, error) {
	if log == nil {
		log = GetLogger()
	}
	if sink == nil {
		sink = jobstate.Discard
	}

	if err := checkClassDirs(split); err != nil {
		return Stats{}, err
	}

	var stats Stats
	classes := make(map[string]struct{})
	total := len(split.Train) + len(split.Val)
	done := 0

	copySet := func(subset string, items []Item) error {
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			dir := filepath.Join(root, subset, ClassDirName(it.Label))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return ioError(err, "mkdir", dir)
			}
			dst := filepath.Join(dir, filepath.Base(it.ImagePath))
			err := copyFile(it.ImagePath, dst)
			switch {
			case errors.Is(err, os.ErrNotExist):
				stats.Skipped++
				log.Warn("training image missing, skipping",
					logger.Int64("segment_id", int64(it.SegmentID)),
					logger.String("path", it.ImagePath))
			case err != nil:
				return ioError(err, "copy", it.ImagePath)
			default:
				stats.Copied++
				classes[it.Label] = struct{}{}
			}
			done++
			if err := sink.Report(ctx, done, total); err != nil {
				return err
			}
		}
		return nil
	}

	if err := copySet(TrainDir, split.Train); err != nil {
		return stats, err
	}
	if err := copySet(ValDir, split.Val); err != nil {
		return stats, err
	}
	stats.Classes = len(classes)

	log.Info("dataset materialized",
		logger.String("root", root),
		logger.Int("train", len(split.Train)),
		logger.Int("val", len(split.Val)),
		logger.Int("copied", stats.Copied),
		logger.Int("skipped", stats.Skipped),
		logger.Bool("val_from_train", split.ValFromTrain))
	return stats, nil
}

// ClassDirName maps a label name to a single safe path element.
func ClassDirName(label string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// checkClassDirs fails when two distinct labels share a class directory,
// as "a/b" and "a_b" do.
func checkClassDirs(split Split) error {
	owners := make(map[string]string)
	for _, items := range [][]Item{split.Train, split.Val} {
		for _, it := range items {
			dir := ClassDirName(it.Label)
			owner, ok := owners[dir]
			if !ok {
				owners[dir] = it.Label
				continue
			}
			if owner != it.Label {
				return errors.New(fmt.Errorf("%w: labels %q and %q both map to class directory %q",
					errors.ErrInvalidParameter, owner, it.Label, dir)).
					Component("dataset").
					Category(errors.CategoryValidation).
					Build()
			}
		}
	}
	return nil
}

// copyFile copies src to dst, returning an error wrapping os.ErrNotExist when src is absent.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func ioError(err error, op, path string) error {
	return errors.New(fmt.Errorf("dataset %s %s: %w", op, path, err)).
		Component("dataset").
		Category(errors.CategoryFileIO).
		FileContext(path).
		Build()
}
