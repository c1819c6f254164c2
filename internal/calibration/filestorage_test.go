package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `%YAML:1.0
---
K: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 1.2e+03, 0., 640., 0., 1.1e+03, 480., 0., 0., 1. ]
D: !!opencv-matrix
   rows: 1
   cols: 5
   dt: d
   data: [ -0.12, 0.08, 0.001, -0.002, 0. ]
R: !!opencv-matrix
   rows: 3
   cols: 1
   dt: d
   data: [ 0.01, -0.02, 1.57 ]
T: !!opencv-matrix
   rows: 3
   cols: 1
   dt: d
   data: [ -4.5, 2.25, 55.1 ]
NK: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 1.1e+03, 0., 630., 0., 1.0e+03, 470., 0., 0., 1. ]
ROI: !!opencv-matrix
   rows: 4
   cols: 1
   dt: d
   data: [ 12., 8., 1240., 930. ]
`

func TestParseFileStorage(t *testing.T) {
	d, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, 1200.0, d.CameraMatrix.At(0, 0))
	assert.Equal(t, 480.0, d.CameraMatrix.At(1, 2))
	assert.Equal(t, []float64{-0.12, 0.08, 0.001, -0.002, 0}, d.DistCoeffs)
	assert.Equal(t, r3.Vector{X: 0.01, Y: -0.02, Z: 1.57}, d.RotationVector)
	assert.Equal(t, r3.Vector{X: -4.5, Y: 2.25, Z: 55.1}, d.TranslationVector)
	assert.Equal(t, 630.0, d.OptimizedCameraMatrix.At(0, 2))
	assert.Equal(t, geometry.RectInt{X: 12, Y: 8, Width: 1240, Height: 930}, d.ROI)
	assert.False(t, d.Finalized())
}

func TestParseOptionalKeys(t *testing.T) {
	doc := `K: [1000, 0, 320, 0, 1000, 240, 0, 0, 1]
D: [0, 0, 0, 0, 0]
R: [0, 0, 0]
T: [0, 0, 50]
`
	d, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, d.CameraMatrix.RawMatrix().Data, d.OptimizedCameraMatrix.RawMatrix().Data)
	assert.True(t, d.ROI.Empty())

	// NK is a copy, not an alias
	d.OptimizedCameraMatrix.Set(0, 0, 1)
	assert.Equal(t, 1000.0, d.CameraMatrix.At(0, 0))
}

func TestParseROISequence(t *testing.T) {
	doc := `K: [1000, 0, 320, 0, 1000, 240, 0, 0, 1]
D: [0]
R: [0, 0, 0]
T: [0, 0, 50]
ROI: [1, 2, 3, 4]
`
	d, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, geometry.RectInt{X: 1, Y: 2, Width: 3, Height: 4}, d.ROI)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing K", "D: [0]\nR: [0, 0, 0]\nT: [0, 0, 1]\n"},
		{"missing D", "K: [1, 0, 0, 0, 1, 0, 0, 0, 1]\nR: [0, 0, 0]\nT: [0, 0, 1]\n"},
		{"missing R", "K: [1, 0, 0, 0, 1, 0, 0, 0, 1]\nD: [0]\nT: [0, 0, 1]\n"},
		{"missing T", "K: [1, 0, 0, 0, 1, 0, 0, 0, 1]\nD: [0]\nR: [0, 0, 0]\n"},
		{"short K", "K: [1, 0, 0]\nD: [0]\nR: [0, 0, 0]\nT: [0, 0, 1]\n"},
		{"bad ROI", "K: [1, 0, 0, 0, 1, 0, 0, 0, 1]\nD: [0]\nR: [0, 0, 0]\nT: [0, 0, 1]\nROI: [1, 2]\n"},
		{"matrix size mismatch", "K: !!opencv-matrix\n  rows: 3\n  cols: 3\n  dt: d\n  data: [1, 2]\nD: [0]\nR: [0, 0, 0]\nT: [0, 0, 1]\n"},
		{"not yaml", "K: [1, 0\n"},
		{"scalar value", "K: 3\nD: [0]\nR: [0, 0, 0]\nT: [0, 0, 1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLoad), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.cal")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, d.DistCoeffs, 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cal"))
	assert.True(t, errors.Is(err, ErrLoad))
}
