// Package calibration holds the camera calibration model: intrinsic and
// extrinsic parameters produced by a one-time calibration run, the inverse
// projection from pixels to points on the calibration plane, and the image
// rectifier that removes lens distortion.
//
// Pixel to world conversion is a single-plane approximation. A scaling
// factor is derived once from an anchor point on the calibration plane and
// reused for every pixel, so results are only meaningful for points lying on
// that same physical plane. It is not a depth reconstruction.
package calibration

import (
	"fmt"
	"strings"

	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrLoad is returned when a calibration document is missing required
	// fields or cannot be parsed.
	ErrLoad = errors.New("calibration load failed")
	// ErrSingularMatrix is returned when a camera matrix cannot be inverted.
	ErrSingularMatrix = errors.New("singular matrix")
	// ErrNotFinalized is returned by projections attempted before Finalize.
	ErrNotFinalized = errors.New("calibration not finalized")
)

// DefaultAnchor is the hand-measured reference point (in cm) of the lab
// rig: 55.5 cm from the lens to the plane point under the principal point,
// 7.5 and 4.1 cm from an arbitrarily chosen plane origin.
var DefaultAnchor = r3.Vector{X: 7.5, Y: 4.1, Z: 55.5}

// Data holds the coefficients of one camera calibration. The loaded fields
// never change; Finalize fills in the derived fields once, after which the
// value is read-only and safe to share between goroutines.
type Data struct {
	CameraMatrix          *mat.Dense // 3x3 intrinsics
	DistCoeffs            []float64
	RotationVector        r3.Vector // Rodrigues vector of one representative pose
	TranslationVector     r3.Vector
	OptimizedCameraMatrix *mat.Dense // 3x3 intrinsics for the undistorted image
	ROI                   geometry.RectInt

	derived *derived
}

type derived struct {
	anchor                   r3.Vector
	invCameraMatrix          *mat.Dense
	invOptimizedCameraMatrix *mat.Dense
	rotationMatrix           *mat.Dense
	invRotationMatrix        *mat.Dense
	scalingFactor            float64
}

// Finalized reports whether the derived fields have been computed.
func (d *Data) Finalized() bool {
	return d.derived != nil
}

// ScalingFactor returns the depth term used to invert the projection.
func (d *Data) ScalingFactor() (float64, error) {
	if d.derived == nil {
		return 0, ErrNotFinalized
	}
	return d.derived.scalingFactor, nil
}

// Anchor returns the plane point the scaling factor was derived from.
func (d *Data) Anchor() (r3.Vector, error) {
	if d.derived == nil {
		return r3.Vector{}, ErrNotFinalized
	}
	return d.derived.anchor, nil
}

// InverseRotation returns a copy of the inverse rotation matrix.
func (d *Data) InverseRotation() (*mat.Dense, error) {
	if d.derived == nil {
		return nil, ErrNotFinalized
	}
	return mat.DenseCopyOf(d.derived.invRotationMatrix), nil
}

// InverseCameraMatrix returns a copy of the inverted intrinsics.
func (d *Data) InverseCameraMatrix() (*mat.Dense, error) {
	if d.derived == nil {
		return nil, ErrNotFinalized
	}
	return mat.DenseCopyOf(d.derived.invCameraMatrix), nil
}

// InverseOptimizedCameraMatrix returns a copy of the inverted optimized intrinsics.
func (d *Data) InverseOptimizedCameraMatrix() (*mat.Dense, error) {
	if d.derived == nil {
		return nil, ErrNotFinalized
	}
	return mat.DenseCopyOf(d.derived.invOptimizedCameraMatrix), nil
}

// Summary renders the calibration for startup logs.
func (d *Data) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ROI: x=%d y=%d w=%d h=%d\n", d.ROI.X, d.ROI.Y, d.ROI.Width, d.ROI.Height)
	if d.derived != nil {
		fmt.Fprintf(&b, "Scaling factor: %.4f\n", d.derived.scalingFactor)
	}
	fmt.Fprintf(&b, "Camera matrix:\n%v\n", mat.Formatted(d.CameraMatrix, mat.Prefix("  ")))
	fmt.Fprintf(&b, "Optimized camera matrix:\n%v", mat.Formatted(d.OptimizedCameraMatrix, mat.Prefix("  ")))
	return b.String()
}
