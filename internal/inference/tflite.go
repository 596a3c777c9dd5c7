package inference

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tflite "github.com/tphakala/go-tflite"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

// LabelsFileName is the fallback label list beside a .tflite model.
const LabelsFileName = "labels.txt"

// readTFLite loads the model bytes and its class names. Names are taken
// from the label file packed into the model's metadata archive, falling
// back to labels.txt in the model directory.
func readTFLite(modelPath string) ([]byte, []string, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryModelLoad).
			FileContext(modelPath).
			Build()
	}

	names, err := embeddedLabels(data)
	if err == nil && len(names) > 0 {
		return data, names, nil
	}

	side := filepath.Join(filepath.Dir(modelPath), LabelsFileName)
	f, openErr := os.Open(side)
	if openErr != nil {
		return nil, nil, errors.New(fmt.Errorf("%w: no embedded labels and no %s", errors.ErrMissingClassManifest, LabelsFileName)).
			Component("inference").
			Category(errors.CategoryModelLoad).
			Build()
	}
	defer f.Close()
	names, err = readLabelLines(f)
	if err != nil {
		return nil, nil, err
	}
	return data, names, nil
}

// embeddedLabels reads the first .txt entry of the zip archive TFLite
// metadata appends to a model.
func embeddedLabels(model []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(model), int64(len(model)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".txt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return readLabelLines(rc)
	}
	return nil, fmt.Errorf("no label file in model metadata")
}

func readLabelLines(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			names = append(names, line)
		}
	}
	return names, sc.Err()
}

type tfliteRunner struct {
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
	input   InputShape
	outputs int
}

func newTFLiteRunner(data []byte, threads int) (*tfliteRunner, error) {
	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model")
	}

	options := tflite.NewInterpreterOptions()
	if threads > 0 {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	r := &tfliteRunner{model: model, options: options}
	r.interp = tflite.NewInterpreter(model, options)
	if r.interp == nil {
		_ = r.Close()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := r.interp.AllocateTensors(); status != tflite.OK {
		_ = r.Close()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	in := r.interp.GetInputTensor(0)
	if in == nil {
		_ = r.Close()
		return nil, fmt.Errorf("cannot get input tensor")
	}
	dims := make([]int64, in.NumDims())
	for i := range dims {
		dims[i] = int64(in.Dim(i))
	}
	shape, err := ShapeFromDims(dims, 224)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.input = shape

	if out := r.interp.GetOutputTensor(0); out != nil {
		r.outputs = out.Dim(out.NumDims() - 1)
	}
	return r, nil
}

func (r *tfliteRunner) Input() InputShape { return r.input }
func (r *tfliteRunner) Outputs() int      { return r.outputs }

func (r *tfliteRunner) Run(input []float32) ([]float32, error) {
	in := r.interp.GetInputTensor(0)
	if in == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(in.Float32s(), input)

	if status := r.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := r.interp.GetOutputTensor(0)
	if out == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	scores := make([]float32, out.Dim(out.NumDims()-1))
	copy(scores, out.Float32s())
	return scores, nil
}

func (r *tfliteRunner) Close() error {
	if r.interp != nil {
		r.interp.Delete()
		r.interp = nil
	}
	if r.options != nil {
		r.options.Delete()
		r.options = nil
	}
	if r.model != nil {
		r.model.Delete()
		r.model = nil
	}
	return nil
}
