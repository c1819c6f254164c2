package calibration

import (
	"image"

	"tile-locator/pkg/geometry"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// Rectifier removes lens distortion from frames and crops them to the valid
// region of interest. It holds native matrices and must be closed.
type Rectifier struct {
	roi             geometry.RectInt
	cameraMatrix    gocv.Mat
	distCoeffs      gocv.Mat
	optimizedMatrix gocv.Mat
}

// NewRectifier converts the calibration matrices for use with OpenCV.
func NewRectifier(d *Data) *Rectifier {
	var dist gocv.Mat
	if len(d.DistCoeffs) > 0 {
		dist = gocv.NewMatWithSize(1, len(d.DistCoeffs), gocv.MatTypeCV64F)
		for i, v := range d.DistCoeffs {
			dist.SetDoubleAt(0, i, v)
		}
	} else {
		dist = gocv.NewMat()
	}

	return &Rectifier{
		roi:             d.ROI,
		cameraMatrix:    denseToMat(d.CameraMatrix),
		distCoeffs:      dist,
		optimizedMatrix: denseToMat(d.OptimizedCameraMatrix),
	}
}

// Rectify returns an undistorted copy of frame cropped to the ROI. The input
// is not modified and the result only depends on the input and calibration.
func (r *Rectifier) Rectify(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), errors.New("rectify: empty frame")
	}

	undistorted := gocv.NewMat()
	gocv.Undistort(frame, &undistorted, r.cameraMatrix, r.distCoeffs, r.optimizedMatrix)

	if r.roi.Empty() {
		return undistorted, nil
	}

	bounds := image.Rect(0, 0, undistorted.Cols(), undistorted.Rows())
	crop := r.roi.Image().Intersect(bounds)
	if crop.Empty() {
		undistorted.Close()
		return gocv.NewMat(), errors.Errorf("rectify: ROI %v outside %dx%d frame", r.roi, bounds.Dx(), bounds.Dy())
	}

	region := undistorted.Region(crop)
	out := region.Clone()
	region.Close()
	undistorted.Close()
	return out, nil
}

// Close releases the native matrices.
func (r *Rectifier) Close() error {
	return multierr.Combine(
		r.cameraMatrix.Close(),
		r.distCoeffs.Close(),
		r.optimizedMatrix.Close(),
	)
}

func denseToMat(m *mat.Dense) gocv.Mat {
	rows, cols := m.Dims()
	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.SetDoubleAt(i, j, m.At(i, j))
		}
	}
	return out
}
