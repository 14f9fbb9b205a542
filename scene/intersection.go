package scene

import "github.com/achilleasa/darkray/types"

// A hit record for a single ray. All fields except Hit are meaningless
// when Hit is false.
type Intersection struct {
	Hit bool

	// Ray parameter at the hit point.
	T float64

	HitPoint types.Vec3
	Normal   types.Vec3
	RayDir   types.Vec3

	// Id of the hit triangle inside its mesh.
	TriangleId int
}

// A miss; returned for rays that do not hit any triangle.
var NoHit = Intersection{TriangleId: -1}

// Build an intersection record for ray hitting tri at distance t.
func NewIntersection(ray Ray, tri *Triangle, t float64) Intersection {
	return Intersection{
		Hit:        true,
		T:          t,
		HitPoint:   ray.PointAt(t),
		Normal:     tri.Normal,
		RayDir:     ray.Dir,
		TriangleId: tri.Id,
	}
}
