// Package display is the interactive preview: a HighGUI window with
// threshold and area sliders that shows each processed frame with the
// detection drawn over it.
package display

import (
	"fmt"
	"image"
	"image/color"

	"tile-locator/internal/pipeline"
	"tile-locator/pkg/geometry"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Palette holds the overlay colors.
type Palette struct {
	Contour color.RGBA
	Corner  color.RGBA
	Axis    color.RGBA
	Hull    color.RGBA
}

// ParsePalette reads "#rrggbb" colors.
func ParsePalette(contour, corner, axis, hull string) (Palette, error) {
	var p Palette
	for _, c := range []struct {
		hex string
		dst *color.RGBA
	}{
		{contour, &p.Contour},
		{corner, &p.Corner},
		{axis, &p.Axis},
		{hull, &p.Hull},
	} {
		parsed, err := colorful.Hex(c.hex)
		if err != nil {
			return Palette{}, errors.Wrapf(err, "color %q", c.hex)
		}
		r, g, b := parsed.RGB255()
		*c.dst = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return p, nil
}

// Overlay returns a BGR copy of frame with the cycle result drawn on it.
func Overlay(frame gocv.Mat, res pipeline.CycleResult, p Palette) gocv.Mat {
	canvas := gocv.NewMat()
	if frame.Channels() == 1 {
		gocv.CvtColor(frame, &canvas, gocv.ColorGrayToBGR)
	} else {
		frame.CopyTo(&canvas)
	}

	if len(res.Contour) > 0 {
		drawPolygons(&canvas, [][]image.Point{res.Contour}, p.Contour, 2)
	}

	if res.Pose != nil {
		px := res.Pose.Pixel
		for _, c := range px.Corners {
			gocv.Circle(&canvas, c.Image(), 5, p.Corner, -1)
		}
		center := px.Centroid.Image()
		gocv.Circle(&canvas, center, 4, p.Axis, -1)
		gocv.ArrowedLine(&canvas, center, px.Centroid.Add(px.Orientation.Scale(0.5)).Image(), p.Axis, 2)

		w := res.Pose.World.Centroid
		label := fmt.Sprintf("x=%.1f y=%.1f z=%.1f", w.X, w.Y, w.Z)
		gocv.PutText(&canvas, label, center.Add(image.Pt(10, -10)), gocv.FontHersheySimplex, 0.5, p.Axis, 1)
	}

	if len(res.Hulls) > 0 {
		hulls := make([][]image.Point, 0, len(res.Hulls))
		for _, h := range res.Hulls {
			hulls = append(hulls, toImagePoints(h))
		}
		drawPolygons(&canvas, hulls, p.Hull, 2)
	}

	status := res.State.String()
	if res.Saved > 0 {
		status = fmt.Sprintf("%s, saved %d", status, res.Saved)
	}
	gocv.PutText(&canvas, fmt.Sprintf("#%d %s", res.Cycle, status), image.Pt(10, 20),
		gocv.FontHersheySimplex, 0.5, p.Contour, 1)
	return canvas
}

func drawPolygons(canvas *gocv.Mat, polys [][]image.Point, c color.RGBA, thickness int) {
	pv := gocv.NewPointsVectorFromPoints(polys)
	defer pv.Close()
	gocv.DrawContours(canvas, pv, -1, c, thickness)
}

func toImagePoints(pts []geometry.Point2D) []image.Point {
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Image()
	}
	return out
}
