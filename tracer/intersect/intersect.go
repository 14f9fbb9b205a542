package intersect

import (
	"fmt"
	"math"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
)

const (
	// Rays whose direction makes an angle with a cosine below this value with
	// the triangle normal are (numerically) parallel to the triangle plane
	// and never hit.
	parallelEpsilon = 1e-12

	// Maximum deviation of a ray direction from unit length.
	rayDirEpsilon = 1e-6
)

// An Engine answers closest-hit queries against the mesh it was built for.
// Implementations must be safe for concurrent use and must return the same
// intersection as ClosestHit for every ray.
type Engine interface {
	ClosestHit(ray scene.Ray) scene.Intersection
}

// Test a single ray against a single triangle using the Moller-Trumbore
// algorithm. It returns the ray parameter at the hit point and true if the
// ray hits the triangle at t >= 0. Degenerate triangles never report a hit.
func HitTriangle(ray scene.Ray, tri *scene.Triangle) (float64, bool) {
	if tri.Degenerate() {
		return 0, false
	}

	edge1 := tri.P2.Sub(tri.P1)
	edge2 := tri.P3.Sub(tri.P1)
	h := ray.Dir.Cross(edge2)
	det := edge1.Dot(h)

	// |det| is the doubled triangle area scaled by that cosine.
	if math.Abs(det) < parallelEpsilon*edge1.Cross(edge2).Len() {
		return 0, false
	}

	invDet := 1.0 / det
	s := ray.Origin.Sub(tri.P1)
	u := invDet * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := invDet * ray.Dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := invDet * edge2.Dot(q)
	if !(t >= 0) || math.IsInf(t, 0) {
		return 0, false
	}
	return t, true
}

// Check that the ray has a finite origin and a finite unit direction.
func ValidateRay(ray scene.Ray) error {
	if !ray.Origin.IsFinite() || !ray.Dir.IsFinite() {
		return fmt.Errorf("%w: ray has non-finite components", tracer.ErrInvalidGeometry)
	}
	if l := ray.Dir.Len(); math.Abs(l-1) > rayDirEpsilon {
		return fmt.Errorf("%w: ray direction is not normalized (length %f)", tracer.ErrInvalidGeometry, l)
	}
	return nil
}

// Find the nearest triangle hit by the ray with a linear scan over the mesh.
// When several triangles are hit at the same distance, the triangle that
// appears first in the mesh wins. Invalid rays never hit anything.
func ClosestHit(ray scene.Ray, mesh *scene.Mesh) scene.Intersection {
	if mesh == nil || ValidateRay(ray) != nil {
		return scene.NoHit
	}

	var closest *scene.Triangle
	closestT := math.Inf(1)
	for _, tri := range mesh.Triangles {
		if t, hit := HitTriangle(ray, tri); hit && t < closestT {
			closestT = t
			closest = tri
		}
	}

	if closest == nil {
		return scene.NoHit
	}
	return scene.NewIntersection(ray, closest, closestT)
}

// An Engine that scans every triangle of the mesh for each ray.
type Linear struct {
	mesh *scene.Mesh
}

// Create a linear scan engine for the given mesh.
func NewLinear(mesh *scene.Mesh) *Linear {
	return &Linear{mesh: mesh}
}

func (l *Linear) ClosestHit(ray scene.Ray) scene.Intersection {
	return ClosestHit(ray, l.mesh)
}
