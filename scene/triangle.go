package scene

import (
	"github.com/achilleasa/darkray/types"
)

// Number of float64 attributes that describe a triangle in flat buffers.
const TriangleAttributes = 9

// Triangles whose edges at P1 enclose an angle with a sine at or below this
// value are considered degenerate, regardless of the triangle size.
const degenerateSineEpsilon = 1e-12

// A mesh triangle. Triangles are immutable once added to a mesh.
type Triangle struct {
	P1, P2, P3 types.Vec3

	// Unit normal; (p2-p1) x (p3-p1).
	Normal types.Vec3

	// Position of the triangle inside its mesh.
	Id int
}

// Create a new triangle and precompute its normal. Vertices should be
// specified in counter-clockwise order when looking at the front face.
func NewTriangle(p1, p2, p3 types.Vec3) *Triangle {
	return &Triangle{
		P1:     p1,
		P2:     p2,
		P3:     p3,
		Normal: p2.Sub(p1).Cross(p3.Sub(p1)).Normalize(),
	}
}

// Returns true if the triangle has (numerically) zero area or non-finite vertices.
func (t *Triangle) Degenerate() bool {
	if !t.P1.IsFinite() || !t.P2.IsFinite() || !t.P3.IsFinite() {
		return true
	}
	edge1 := t.P2.Sub(t.P1)
	edge2 := t.P3.Sub(t.P1)
	return edge1.Cross(edge2).Len() <= degenerateSineEpsilon*edge1.Len()*edge2.Len()
}

// Get the triangle's axis aligned bounding box.
func (t *Triangle) BBox() [2]types.Vec3 {
	return [2]types.Vec3{
		types.MinVec3(types.MinVec3(t.P1, t.P2), t.P3),
		types.MaxVec3(types.MaxVec3(t.P1, t.P2), t.P3),
	}
}
