// Package tile finds a single rectangular tile in a frame and derives its
// pose: the tile contour, its four corners, centroid and orientation.
package tile

import (
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
)

// ThresholdMode selects how the smoothed grayscale frame is binarized.
type ThresholdMode int

const (
	// ThresholdBinary sets pixels above the threshold to 255 and the rest to 0.
	ThresholdBinary ThresholdMode = iota
	// ThresholdToZero keeps pixels above the threshold and zeroes the rest.
	ThresholdToZero
)

// String returns the config name of the mode.
func (m ThresholdMode) String() string {
	switch m {
	case ThresholdBinary:
		return "binary"
	case ThresholdToZero:
		return "to_zero"
	default:
		return fmt.Sprintf("ThresholdMode(%d)", int(m))
	}
}

// ParseThresholdMode parses "binary" or "to_zero".
func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "binary":
		return ThresholdBinary, nil
	case "to_zero", "tozero":
		return ThresholdToZero, nil
	default:
		return 0, fmt.Errorf("unknown threshold mode %q", s)
	}
}

func (m ThresholdMode) gocv() gocv.ThresholdType {
	if m == ThresholdToZero {
		return gocv.ThresholdToZero
	}
	return gocv.ThresholdBinary
}

// Contour is a closed curve of pixel coordinates.
type Contour []image.Point

// Params are the per-cycle detection settings. Threshold and the area limits
// come from the user each cycle; the rest is configuration.
type Params struct {
	Threshold    int
	MinArea      float64 // exclusive, in square pixels
	MaxArea      float64 // exclusive, in square pixels
	Mode         ThresholdMode
	MedianKernel int // odd aperture; values below 3 disable smoothing
}

// DefaultParams returns settings that work for dark tiles on a light
// background under the rig lighting. Bright tiles need a threshold near 150.
func DefaultParams() Params {
	return Params{
		Threshold:    45,
		MinArea:      1000,
		MaxArea:      100000,
		Mode:         ThresholdBinary,
		MedianKernel: 5,
	}
}

// Binarize converts frame to grayscale, median filters it to suppress sensor
// noise and applies the threshold. The caller owns the returned Mat.
func Binarize(frame gocv.Mat, p Params) gocv.Mat {
	gray := gocv.NewMat()
	switch frame.Channels() {
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		frame.CopyTo(&gray)
	}

	if p.MedianKernel >= 3 {
		k := p.MedianKernel
		if k%2 == 0 {
			k++
		}
		smoothed := gocv.NewMat()
		gocv.MedianBlur(gray, &smoothed, k)
		gray.Close()
		gray = smoothed
	}

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, float32(p.Threshold), 255, p.Mode.gocv())
	gray.Close()
	return binary
}

// FindContours extracts the external contours of a binary image whose
// enclosed area lies strictly between minArea and maxArea.
func FindContours(binary gocv.Mat, minArea, maxArea float64, method gocv.ContourApproximationMode) []Contour {
	contours := gocv.FindContours(binary, gocv.RetrievalExternal, method)
	defer contours.Close()

	var found []Contour
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area > minArea && area < maxArea {
			found = append(found, Contour(c.ToPoints()))
		}
	}
	return found
}

// Detect returns the tile contour in frame. A single tile is expected per
// frame: when no contour or more than one contour passes the area filter the
// result is reported as not found instead of guessing.
func Detect(frame gocv.Mat, p Params) (Contour, bool) {
	binary := Binarize(frame, p)
	defer binary.Close()

	found := FindContours(binary, p.MinArea, p.MaxArea, gocv.ChainApproxSimple)
	if len(found) != 1 {
		return nil, false
	}
	return found[0], true
}

// DetectAll returns every contour passing the area filter, with all boundary
// pixels kept. Used by the batch finder where several tiles may be in view.
func DetectAll(frame gocv.Mat, p Params) []Contour {
	binary := Binarize(frame, p)
	defer binary.Close()

	return FindContours(binary, p.MinArea, p.MaxArea, gocv.ChainApproxNone)
}
