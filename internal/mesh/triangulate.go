package mesh

import (
	"tile-locator/pkg/geometry"

	"github.com/pkg/errors"
)

// triangulate splits a simple counter-clockwise polygon into triangles by ear
// clipping. Collinear vertices are clipped without emitting a triangle.
func triangulate(pts []geometry.Point2D) ([][3]int, error) {
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}

	tris := make([][3]int, 0, len(pts)-2)
	for len(idx) > 3 {
		clipped := false
		for i := range idx {
			prev := idx[(i+len(idx)-1)%len(idx)]
			cur := idx[i]
			next := idx[(i+1)%len(idx)]
			if !isEar(pts, idx, prev, cur, next) {
				continue
			}
			tris = append(tris, [3]int{prev, cur, next})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if clipped {
			continue
		}

		// only flat vertices left to remove
		for i := range idx {
			prev := idx[(i+len(idx)-1)%len(idx)]
			next := idx[(i+1)%len(idx)]
			if geometry.Cross(pts[prev], pts[idx[i]], pts[next]) == 0 {
				idx = append(idx[:i], idx[i+1:]...)
				clipped = true
				break
			}
		}
		if !clipped {
			return nil, errors.Wrap(ErrDegeneratePolygon, "no ear found")
		}
	}

	if geometry.Cross(pts[idx[0]], pts[idx[1]], pts[idx[2]]) > 0 {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	}
	if len(tris) == 0 {
		return nil, errors.Wrap(ErrDegeneratePolygon, "no triangles")
	}
	return tris, nil
}

func isEar(pts []geometry.Point2D, idx []int, prev, cur, next int) bool {
	a, b, c := pts[prev], pts[cur], pts[next]
	if geometry.Cross(a, b, c) <= 0 {
		return false
	}
	for _, k := range idx {
		if k == prev || k == cur || k == next {
			continue
		}
		if geometry.PointInTriangle(pts[k], a, b, c) {
			return false
		}
	}
	return true
}
