package calibration

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Finalize computes the derived fields needed for projection: the inverted
// intrinsics, the rotation matrix of RotationVector and its inverse, and the
// scaling factor. The scaling factor is the depth component of the anchor
// point projected through NK·[R|t]; it is assumed constant for every point on
// the calibration plane.
//
// Finalize is idempotent. Call it once before sharing the Data.
func (d *Data) Finalize(anchor r3.Vector) error {
	invK, err := invert3(d.CameraMatrix, "camera matrix")
	if err != nil {
		return err
	}
	invNK, err := invert3(d.OptimizedCameraMatrix, "optimized camera matrix")
	if err != nil {
		return err
	}

	rot := Rodrigues(d.RotationVector)
	// rotation matrices are orthonormal
	invRot := mat.DenseCopyOf(rot.T())

	extrinsic := mat.NewDense(3, 4, nil)
	extrinsic.Augment(rot, mat.NewDense(3, 1, []float64{
		d.TranslationVector.X, d.TranslationVector.Y, d.TranslationVector.Z,
	}))

	var projection mat.Dense
	projection.Mul(d.OptimizedCameraMatrix, extrinsic)

	var projected mat.VecDense
	projected.MulVec(&projection, mat.NewVecDense(4, []float64{anchor.X, anchor.Y, anchor.Z, 1}))

	scaling := projected.AtVec(2)
	if scaling == 0 || math.IsNaN(scaling) || math.IsInf(scaling, 0) {
		return errors.Errorf("anchor %v projects to depth %v", anchor, scaling)
	}

	d.derived = &derived{
		anchor:                   anchor,
		invCameraMatrix:          invK,
		invOptimizedCameraMatrix: invNK,
		rotationMatrix:           rot,
		invRotationMatrix:        invRot,
		scalingFactor:            scaling,
	}
	return nil
}

// Rodrigues converts a rotation vector (axis scaled by angle in radians) to
// a 3x3 rotation matrix.
func Rodrigues(rvec r3.Vector) *mat.Dense {
	theta := rvec.Norm()
	if theta < 1e-12 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}

	k := rvec.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c

	// R = cos(θ)I + (1-cos(θ))kkᵀ + sin(θ)[k]ₓ
	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s,
		k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s,
		k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v,
	})
}

func invert3(m *mat.Dense, name string) (*mat.Dense, error) {
	if m == nil {
		return nil, errors.Wrapf(ErrLoad, "%s not set", name)
	}
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, errors.Wrapf(ErrLoad, "%s is %dx%d", name, r, c)
	}
	if det := mat.Det(m); math.Abs(det) < 1e-12 {
		return nil, errors.Wrapf(ErrSingularMatrix, "%s has determinant %g", name, det)
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrapf(ErrSingularMatrix, "%s: %v", name, err)
	}
	return &inv, nil
}
