package calibration

import (
	"bytes"
	"os"

	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Keys of the calibration document written by the calibration tool.
const (
	keyCameraMatrix    = "K"
	keyDistortion      = "D"
	keyRotation        = "R"
	keyTranslation     = "T"
	keyOptimizedMatrix = "NK"
	keyROI             = "ROI"
)

// fileMatrix mirrors an OpenCV FileStorage "!!opencv-matrix" node.
type fileMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Dt   string    `yaml:"dt"`
	Data []float64 `yaml:"data"`
}

// Load reads an OpenCV FileStorage YAML calibration file.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrLoad, "reading %s: %v", path, err)
	}
	return Parse(raw)
}

// Parse decodes a calibration document. K, D, R and T are required. NK
// defaults to K and a missing ROI means the undistorted frame is not cropped.
func Parse(raw []byte) (*Data, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(stripDirective(raw), &doc); err != nil {
		return nil, errors.Wrapf(ErrLoad, "parsing document: %v", err)
	}

	k, err := readMatrix(doc, keyCameraMatrix, 3, 3)
	if err != nil {
		return nil, err
	}
	dist, err := readValues(doc, keyDistortion)
	if err != nil {
		return nil, err
	}
	rvec, err := readVector3(doc, keyRotation)
	if err != nil {
		return nil, err
	}
	tvec, err := readVector3(doc, keyTranslation)
	if err != nil {
		return nil, err
	}

	nk := mat.DenseCopyOf(k)
	if _, ok := doc[keyOptimizedMatrix]; ok {
		if nk, err = readMatrix(doc, keyOptimizedMatrix, 3, 3); err != nil {
			return nil, err
		}
	}

	var roi geometry.RectInt
	if _, ok := doc[keyROI]; ok {
		vals, err := readValues(doc, keyROI)
		if err != nil {
			return nil, err
		}
		if len(vals) != 4 {
			return nil, errors.Wrapf(ErrLoad, "%s: want 4 values, got %d", keyROI, len(vals))
		}
		roi = geometry.RectInt{X: int(vals[0]), Y: int(vals[1]), Width: int(vals[2]), Height: int(vals[3])}
	}

	return &Data{
		CameraMatrix:          k,
		DistCoeffs:            dist,
		RotationVector:        rvec,
		TranslationVector:     tvec,
		OptimizedCameraMatrix: nk,
		ROI:                   roi,
	}, nil
}

// stripDirective drops the "%YAML:1.0" header OpenCV writes, which is not a
// valid YAML 1.1/1.2 directive.
func stripDirective(raw []byte) []byte {
	if bytes.HasPrefix(raw, []byte("%YAML")) {
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			return raw[i+1:]
		}
		return nil
	}
	return raw
}

// readValues returns the flat numeric payload of a key that is either an
// opencv-matrix mapping or a plain sequence.
func readValues(doc map[string]yaml.Node, key string) ([]float64, error) {
	node, ok := doc[key]
	if !ok {
		return nil, errors.Wrapf(ErrLoad, "missing key %s", key)
	}

	switch node.Kind {
	case yaml.SequenceNode:
		var vals []float64
		if err := node.Decode(&vals); err != nil {
			return nil, errors.Wrapf(ErrLoad, "%s: %v", key, err)
		}
		return vals, nil
	case yaml.MappingNode:
		// The custom tag carries no meaning for decoding.
		node.Tag = "!!map"
		var m fileMatrix
		if err := node.Decode(&m); err != nil {
			return nil, errors.Wrapf(ErrLoad, "%s: %v", key, err)
		}
		if m.Rows*m.Cols != len(m.Data) {
			return nil, errors.Wrapf(ErrLoad, "%s: %dx%d matrix with %d values", key, m.Rows, m.Cols, len(m.Data))
		}
		return m.Data, nil
	default:
		return nil, errors.Wrapf(ErrLoad, "%s: unsupported node kind", key)
	}
}

func readMatrix(doc map[string]yaml.Node, key string, rows, cols int) (*mat.Dense, error) {
	vals, err := readValues(doc, key)
	if err != nil {
		return nil, err
	}
	if len(vals) != rows*cols {
		return nil, errors.Wrapf(ErrLoad, "%s: want %dx%d values, got %d", key, rows, cols, len(vals))
	}
	return mat.NewDense(rows, cols, vals), nil
}

func readVector3(doc map[string]yaml.Node, key string) (r3.Vector, error) {
	vals, err := readValues(doc, key)
	if err != nil {
		return r3.Vector{}, err
	}
	if len(vals) != 3 {
		return r3.Vector{}, errors.Wrapf(ErrLoad, "%s: want 3 values, got %d", key, len(vals))
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
