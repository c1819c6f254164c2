// Package mesh extrudes a planar tile outline into a closed prism and writes
// the result for downstream consumers.
package mesh

import (
	"math"

	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrDegeneratePolygon is returned for outlines that cannot bound a solid:
// fewer than three distinct points, zero area, or self-intersecting edges.
var ErrDegeneratePolygon = errors.New("degenerate polygon")

// Mesh is a closed prism. Vertices 0..n-1 form the bottom ring at z=0 and
// n..2n-1 the top ring at z=thickness. Faces lists the polygon faces: the
// bottom cap, the top cap and one quad per outline edge, all wound
// counter-clockwise when seen from outside.
type Mesh struct {
	Vertices []r3.Vector
	Faces    [][]int

	caps [][3]int // triangulated outline, indices into the bottom ring
}

// Build extrudes outline along +z by thickness. Consecutive duplicate points
// are dropped before validation; the winding of the input does not matter.
func Build(outline []geometry.Point2D, thickness float64) (*Mesh, error) {
	if thickness <= 0 || math.IsNaN(thickness) || math.IsInf(thickness, 0) {
		return nil, errors.Errorf("thickness must be positive, got %v", thickness)
	}

	pts := geometry.Dedupe(outline)
	if len(pts) < 3 {
		return nil, errors.Wrapf(ErrDegeneratePolygon, "%d distinct points", len(pts))
	}
	area := geometry.SignedArea(pts)
	if math.Abs(area) < 1e-9 {
		return nil, errors.Wrap(ErrDegeneratePolygon, "zero area")
	}
	if !geometry.IsSimple(pts) {
		return nil, errors.Wrap(ErrDegeneratePolygon, "self-intersecting")
	}
	if area < 0 {
		pts = reversed(pts)
	}

	caps, err := triangulate(pts)
	if err != nil {
		return nil, err
	}

	n := len(pts)
	m := &Mesh{
		Vertices: make([]r3.Vector, 0, 2*n),
		Faces:    make([][]int, 0, n+2),
		caps:     caps,
	}
	for _, p := range pts {
		m.Vertices = append(m.Vertices, r3.Vector{X: p.X, Y: p.Y})
	}
	for _, p := range pts {
		m.Vertices = append(m.Vertices, r3.Vector{X: p.X, Y: p.Y, Z: thickness})
	}

	bottom := make([]int, n)
	top := make([]int, n)
	for i := 0; i < n; i++ {
		bottom[i] = n - 1 - i
		top[i] = n + i
	}
	m.Faces = append(m.Faces, bottom, top)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		m.Faces = append(m.Faces, []int{i, j, n + j, n + i})
	}
	return m, nil
}

// Triangles returns the faces split into triangles with the same winding:
// both caps by ear clipping and every side quad as two triangles.
func (m *Mesh) Triangles() [][3]int {
	n := len(m.Vertices) / 2
	tris := make([][3]int, 0, 2*len(m.caps)+2*n)
	for _, t := range m.caps {
		tris = append(tris, [3]int{t[0], t[2], t[1]})
	}
	for _, t := range m.caps {
		tris = append(tris, [3]int{n + t[0], n + t[1], n + t[2]})
	}
	for _, f := range m.Faces[2:] {
		tris = append(tris, [3]int{f[0], f[1], f[2]}, [3]int{f[0], f[2], f[3]})
	}
	return tris
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi r3.Vector) {
	if len(m.Vertices) == 0 {
		return lo, hi
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = r3.Vector{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vector{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo, hi
}

func reversed(pts []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
