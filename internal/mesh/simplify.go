package mesh

import (
	"tile-locator/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Simplify reduces an outline with Douglas-Peucker. A tolerance of zero or
// less returns the outline unchanged, as does a result with fewer than three
// points.
func Simplify(outline []geometry.Point2D, tolerance float64) []geometry.Point2D {
	if tolerance <= 0 || len(outline) < 4 {
		return outline
	}

	ls := make(orb.LineString, 0, len(outline)+1)
	for _, p := range outline {
		ls = append(ls, orb.Point{p.X, p.Y})
	}
	// close the ring so the last edge is simplified too
	ls = append(ls, ls[0])

	s := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone())
	result, ok := s.(orb.LineString)
	if !ok || len(result) < 4 {
		return outline
	}

	out := make([]geometry.Point2D, 0, len(result))
	for _, p := range result {
		out = append(out, geometry.Point2D{X: p.X(), Y: p.Y()})
	}
	return geometry.Dedupe(out)
}
