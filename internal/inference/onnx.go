package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initONNXRuntime loads the shared library once per process.
func initONNXRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

type onnxRunner struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	input      InputShape
	inputDims  ort.Shape
	outputs    int
}

func newONNXRunner(modelPath string, classes int, opts Options) (*onnxRunner, error) {
	if err := initONNXRuntime(opts.ONNXRuntimePath); err != nil {
		return nil, fmt.Errorf("onnxruntime init: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model io: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model declares %d inputs and %d outputs", len(inputs), len(outputs))
	}

	shape, err := ShapeFromDims(inputs[0].Dimensions, 224)
	if err != nil {
		return nil, err
	}
	dims := ort.NewShape(1, int64(shape.Height), int64(shape.Width), int64(shape.Channels))
	if shape.ChannelsFirst {
		dims = ort.NewShape(1, int64(shape.Channels), int64(shape.Height), int64(shape.Width))
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()
	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, err
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, options)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	outCount := classes
	if d := outputs[0].Dimensions; len(d) > 0 && d[len(d)-1] > 0 {
		outCount = int(d[len(d)-1])
	}

	return &onnxRunner{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		input:      shape,
		inputDims:  dims,
		outputs:    outCount,
	}, nil
}

func (r *onnxRunner) Input() InputShape { return r.input }
func (r *onnxRunner) Outputs() int      { return r.outputs }

func (r *onnxRunner) Run(input []float32) ([]float32, error) {
	in, err := ort.NewTensor(r.inputDims, input)
	if err != nil {
		return nil, err
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(r.outputs)))
	if err != nil {
		return nil, err
	}
	defer out.Destroy()

	if err := r.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, err
	}
	scores := make([]float32, r.outputs)
	copy(scores, out.GetData())
	return scores, nil
}

func (r *onnxRunner) Close() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	return err
}
