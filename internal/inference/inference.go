// Package inference predicts a single label for a spectrogram image using
// one of two model formats.
//
// Variant A (.tflite) carries its class names inside the model file or in
// a labels.txt beside it. Variant B (.onnx) is a bare tensor classifier
// whose class names come from a class_names.json manifest next to the
// model. The variant is chosen once from the file extension.
package inference

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

// Variant identifies the model format.
type Variant string

const (
	VariantTFLite Variant = "tflite"
	VariantONNX   Variant = "onnx"
)

// ManifestName is the class manifest expected beside an ONNX model.
const ManifestName = "class_names.json"

// Prediction is the outcome of one forward pass.
type Prediction struct {
	Variant    Variant
	Index      int
	Label      string
	Confidence float32
}

// Classifier is a loaded model.
type Classifier interface {
	Variant() Variant
	ClassNames() []string
	Predict(ctx context.Context, imagePath string) (Prediction, error)
	Close() error
}

// Options configure model loading.
type Options struct {
	Threads         int
	ONNXRuntimePath string
	Logger          logger.Logger
}

// DetectVariant maps a model path to its variant by extension.
func DetectVariant(modelPath string) (Variant, error) {
	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".tflite":
		return VariantTFLite, nil
	case ".onnx":
		return VariantONNX, nil
	default:
		return "", errors.New(fmt.Errorf("%w: %q", errors.ErrUnsupportedModelFormat, filepath.Ext(modelPath))).
			Component("inference").
			Category(errors.CategoryModelLoad).
			FileContext(modelPath).
			Build()
	}
}

// ManifestPath returns the class manifest location for modelPath.
func ManifestPath(modelPath string) string {
	return filepath.Join(filepath.Dir(modelPath), ManifestName)
}

// Load opens modelPath. The format and, for ONNX, the manifest are checked
// before any runtime is touched.
func Load(modelPath string, opts Options) (Classifier, error) {
	variant, err := DetectVariant(modelPath)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = GetLogger()
	}

	var (
		names []string
		r     runner
	)
	switch variant {
	case VariantONNX:
		names, err = ReadManifest(ManifestPath(modelPath))
		if err != nil {
			return nil, err
		}
		r, err = newONNXRunner(modelPath, len(names), opts)
	case VariantTFLite:
		var data []byte
		data, names, err = readTFLite(modelPath)
		if err != nil {
			return nil, err
		}
		r, err = newTFLiteRunner(data, opts.Threads)
	}
	if err != nil {
		return nil, errors.ExternalFailure("inference", err)
	}

	c, err := newClassifier(variant, names, r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	log.Info("model loaded",
		logger.String("variant", string(variant)),
		logger.String("model", filepath.Base(modelPath)),
		logger.Int("classes", len(names)))
	return c, nil
}

// runner is one loaded model runtime. Run receives a tensor laid out as
// described by Input and returns the raw output scores.
type runner interface {
	Input() InputShape
	Outputs() int
	Run(input []float32) ([]float32, error)
	Close() error
}

type classifier struct {
	variant Variant
	names   []string
	r       runner
	mu      sync.Mutex // runtimes are not safe for concurrent Run
}

func newClassifier(variant Variant, names []string, r runner) (*classifier, error) {
	if n := r.Outputs(); n > 0 && n != len(names) {
		return nil, errors.Newf("model has %d outputs but %d class names", n, len(names)).
			Component("inference").
			Category(errors.CategoryModelInit).
			Build()
	}
	return &classifier{variant: variant, names: names, r: r}, nil
}

func (c *classifier) Variant() Variant     { return c.variant }
func (c *classifier) ClassNames() []string { return c.names }

func (c *classifier) Predict(ctx context.Context, imagePath string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	tensor, err := LoadImageTensor(imagePath, c.r.Input())
	if err != nil {
		return Prediction{}, err
	}

	c.mu.Lock()
	scores, err := c.r.Run(tensor)
	c.mu.Unlock()
	if err != nil {
		return Prediction{}, errors.New(err).
			Component("inference").
			Category(errors.CategoryInference).
			Context("variant", string(c.variant)).
			Build()
	}

	if c.variant == VariantONNX {
		scores = Softmax(scores)
	}
	idx := ArgMax(scores)
	if idx < 0 || idx >= len(c.names) {
		return Prediction{}, errors.Newf("prediction index %d outside %d classes", idx, len(c.names)).
			Component("inference").
			Category(errors.CategoryInference).
			Build()
	}
	return Prediction{Variant: c.variant, Index: idx, Label: c.names[idx], Confidence: scores[idx]}, nil
}

func (c *classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r.Close()
}
