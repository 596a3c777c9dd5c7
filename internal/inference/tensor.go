package inference

import (
	"fmt"
	"image"
	_ "image/jpeg" // spectrograms may be stored as JPEG
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/tphakala/segmentlab/internal/errors"
)

// InputShape describes the image tensor a model expects.
type InputShape struct {
	Height        int
	Width         int
	Channels      int
	ChannelsFirst bool // NCHW when true, NHWC otherwise
}

// ShapeFromDims interprets a rank-4 input shape, detecting channel order.
// Dynamic dimensions (<= 0) fall back to def.
func ShapeFromDims(dims []int64, def int) (InputShape, error) {
	if len(dims) != 4 {
		return InputShape{}, fmt.Errorf("expected rank-4 image input, got rank %d", len(dims))
	}
	d := func(v int64) int {
		if v <= 0 {
			return def
		}
		return int(v)
	}
	if dims[1] == 1 || dims[1] == 3 {
		if dims[3] != 1 && dims[3] != 3 {
			return InputShape{Channels: int(dims[1]), Height: d(dims[2]), Width: d(dims[3]), ChannelsFirst: true}, nil
		}
	}
	return InputShape{Height: d(dims[1]), Width: d(dims[2]), Channels: d(dims[3])}, nil
}

// Size returns the number of float32 values in one tensor.
func (s InputShape) Size() int {
	return s.Height * s.Width * s.Channels
}

// LoadImageTensor decodes a PNG or JPEG image, scales it to the model input
// with bilinear interpolation and returns values in [0,1]. A missing file
// matches errors.ErrMissingArtifact.
func LoadImageTensor(path string, shape InputShape) ([]float32, error) {
	if shape.Height <= 0 || shape.Width <= 0 || (shape.Channels != 1 && shape.Channels != 3) {
		return nil, errors.Newf("unsupported model input %dx%dx%d", shape.Height, shape.Width, shape.Channels).
			Component("inference").
			Category(errors.CategoryModelInit).
			Build()
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrMissingArtifact, path)
		}
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("decode %s: %w", path, err)).
			Component("inference").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}

	dst := image.NewRGBA(image.Rect(0, 0, shape.Width, shape.Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, shape.Size())
	plane := shape.Height * shape.Width
	for y := range shape.Height {
		for x := range shape.Width {
			px := dst.RGBAAt(x, y)
			rgb := [3]float32{float32(px.R) / 255, float32(px.G) / 255, float32(px.B) / 255}
			if shape.Channels == 1 {
				rgb[0] = (rgb[0] + rgb[1] + rgb[2]) / 3
			}
			pos := y*shape.Width + x
			for c := range shape.Channels {
				if shape.ChannelsFirst {
					out[c*plane+pos] = rgb[c]
				} else {
					out[pos*shape.Channels+c] = rgb[c]
				}
			}
		}
	}
	return out, nil
}
