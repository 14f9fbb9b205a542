package scene

import "github.com/achilleasa/darkray/types"

// Number of float64 attributes that describe a ray in flat buffers.
const RayAttributes = 6

// A ray with an origin and a normalized direction.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3
}

// Create a new ray. The direction is normalized.
func NewRay(origin, dir types.Vec3) Ray {
	return Ray{
		Origin: origin,
		Dir:    dir.Normalize(),
	}
}

// Get the point at distance t along the ray.
func (r Ray) PointAt(t float64) types.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}
