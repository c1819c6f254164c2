package calibration

import (
	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PixelToWorld maps a pixel of the rectified image to a point in the
// calibration reference frame:
//
//	world = R⁻¹ · (NK⁻¹ · s·(u, v, 1) − t)
//
// Only points on the calibration plane map correctly.
func (d *Data) PixelToWorld(p geometry.Point2D) (r3.Vector, error) {
	cam, err := d.PixelToCamera(p)
	if err != nil {
		return r3.Vector{}, err
	}

	shifted := mat.NewVecDense(3, []float64{
		cam.X - d.TranslationVector.X,
		cam.Y - d.TranslationVector.Y,
		cam.Z - d.TranslationVector.Z,
	})
	var world mat.VecDense
	world.MulVec(d.derived.invRotationMatrix, shifted)
	return r3.Vector{X: world.AtVec(0), Y: world.AtVec(1), Z: world.AtVec(2)}, nil
}

// PixelToCamera returns the camera-space point of a pixel at the scaling
// factor depth.
func (d *Data) PixelToCamera(p geometry.Point2D) (r3.Vector, error) {
	if d.derived == nil {
		return r3.Vector{}, ErrNotFinalized
	}

	s := d.derived.scalingFactor
	uv1 := mat.NewVecDense(3, []float64{s * p.X, s * p.Y, s})
	var cam mat.VecDense
	cam.MulVec(d.derived.invOptimizedCameraMatrix, uv1)
	return r3.Vector{X: cam.AtVec(0), Y: cam.AtVec(1), Z: cam.AtVec(2)}, nil
}

// WorldToPixel projects a point in the calibration frame onto the rectified
// image using NK·[R|t].
func (d *Data) WorldToPixel(w r3.Vector) (geometry.Point2D, error) {
	if d.derived == nil {
		return geometry.Point2D{}, ErrNotFinalized
	}

	var cam mat.VecDense
	cam.MulVec(d.derived.rotationMatrix, mat.NewVecDense(3, []float64{w.X, w.Y, w.Z}))
	cam.AddVec(&cam, mat.NewVecDense(3, []float64{
		d.TranslationVector.X, d.TranslationVector.Y, d.TranslationVector.Z,
	}))

	var uvw mat.VecDense
	uvw.MulVec(d.OptimizedCameraMatrix, &cam)
	depth := uvw.AtVec(2)
	if depth == 0 {
		return geometry.Point2D{}, errors.Errorf("point %v projects to zero depth", w)
	}
	return geometry.Point2D{X: uvw.AtVec(0) / depth, Y: uvw.AtVec(1) / depth}, nil
}
