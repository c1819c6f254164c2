package tile

import (
	"math"
	"time"

	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultArcLengthFactor is the polygon simplification tolerance as a
// fraction of the contour perimeter.
const DefaultArcLengthFactor = 0.1

// ErrDegenerateContour is returned when a contour encloses no area.
var ErrDegenerateContour = errors.New("degenerate contour")

// Polygon holds the four tile corners, clockwise on screen.
type Polygon [4]geometry.Point2D

// Points returns the corners as a slice.
func (p Polygon) Points() []geometry.Point2D {
	return p[:]
}

// PixelPose is the tile pose in image coordinates.
type PixelPose struct {
	Centroid    geometry.Point2D
	Orientation geometry.Point2D
	Corners     Polygon
}

// WorldPose is the tile pose on the calibration plane.
type WorldPose struct {
	Centroid    r3.Vector
	Orientation r3.Vector
}

// Pose is the result of one successful detection cycle.
type Pose struct {
	Cycle     uint64
	Timestamp time.Time
	Pixel     PixelPose
	World     WorldPose
}

// Projector maps pixels of the rectified image to world coordinates.
type Projector interface {
	PixelToWorld(p geometry.Point2D) (r3.Vector, error)
}

// Approximate simplifies the contour with Douglas-Peucker using a tolerance
// of factor times the contour perimeter. The result is accepted only when it
// has exactly four corners. factor must lie in (0, 1).
func Approximate(c Contour, factor float64) (Polygon, bool) {
	if factor <= 0 || factor >= 1 || len(c) < 4 {
		return Polygon{}, false
	}

	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()

	epsilon := factor * gocv.ArcLength(pv, true)
	approx := gocv.ApproxPolyDP(pv, epsilon, true)
	defer approx.Close()

	if approx.Size() != 4 {
		return Polygon{}, false
	}

	pts := geometry.FromImagePoints(approx.ToPoints())
	if geometry.SignedArea(pts) < 0 {
		pts[1], pts[3] = pts[3], pts[1]
	}

	var poly Polygon
	copy(poly[:], pts)
	return poly, true
}

// Centroid returns the area-weighted center of the region the contour
// encloses (M10/M00, M01/M00).
func Centroid(c Contour) (geometry.Point2D, error) {
	m := geometry.PolygonMoments(geometry.FromImagePoints(c))
	if math.Abs(m.M00) < 1e-9 {
		return geometry.Point2D{}, ErrDegenerateContour
	}
	return geometry.Point2D{X: m.M10 / m.M00, Y: m.M01 / m.M00}, nil
}

// OrientationVector returns the longer of the edges corner0→corner1 and
// corner1→corner2, so it follows the long side of the tile.
//
// The sign is not meaningful: either end of the tile may come first, and
// callers must not expect the direction to be stable between cycles. For
// square tiles the choice between the two edges is arbitrary as well.
func OrientationVector(p Polygon) geometry.Point2D {
	v1 := p[1].Sub(p[0])
	v2 := p[2].Sub(p[1])
	if v1.Length() > v2.Length() {
		return v1
	}
	return v2
}

// ExtractPose approximates the corners, centroid and orientation of a tile
// contour. ok is false when the contour does not simplify to four corners.
func ExtractPose(c Contour, factor float64) (pose PixelPose, ok bool, err error) {
	poly, ok := Approximate(c, factor)
	if !ok {
		return PixelPose{}, false, nil
	}
	centroid, err := Centroid(c)
	if err != nil {
		return PixelPose{}, false, err
	}
	return PixelPose{
		Centroid:    centroid,
		Orientation: OrientationVector(poly),
		Corners:     poly,
	}, true, nil
}

// ProjectPose converts a pixel pose to the calibration plane. The world
// orientation is the difference of the projected orientation end point and
// the projected centroid.
func ProjectPose(p PixelPose, proj Projector) (WorldPose, error) {
	centroid, err := proj.PixelToWorld(p.Centroid)
	if err != nil {
		return WorldPose{}, errors.Wrap(err, "projecting centroid")
	}
	tip, err := proj.PixelToWorld(p.Centroid.Add(p.Orientation))
	if err != nil {
		return WorldPose{}, errors.Wrap(err, "projecting orientation")
	}
	return WorldPose{
		Centroid:    centroid,
		Orientation: tip.Sub(centroid),
	}, nil
}
