package scene

import (
	"math"

	"github.com/achilleasa/darkray/types"
)

const invPi = 1.0 / math.Pi

// A Material maps a surface hit and the scene lights to an outgoing color.
// Implementations must not clamp their output.
type Material interface {
	// The material name.
	Name() string

	// Evaluate the material for the given hit. Callers must only pass
	// intersections with Hit set to true.
	Shade(it Intersection, lights []*Light) types.Color
}

// A perfectly diffuse (lambertian) material with an ambient term.
type Matte struct {
	MatName string

	// Surface color.
	Cd types.Color

	// Ambient and diffuse reflection coefficients.
	Ka float64
	Kd float64
}

// Create a matte material.
func NewMatte(name string, cd types.Color, ka, kd float64) *Matte {
	return &Matte{MatName: name, Cd: cd, Ka: ka, Kd: kd}
}

func (m *Matte) Name() string {
	return m.MatName
}

func (m *Matte) Shade(it Intersection, lights []*Light) types.Color {
	var out types.Color
	n, _ := shadingFrame(it)
	for _, l := range lights {
		out = out.Add(m.shadeLight(it, n, l))
	}
	return out
}

func (m *Matte) shadeLight(it Intersection, n types.Vec3, l *Light) types.Color {
	if l.Type == AmbientLight {
		return m.Cd.Scale(m.Ka).Mul(l.Radiance())
	}

	wi := l.DirectionFrom(it.HitPoint)
	nDotWi := n.Dot(wi)
	if nDotWi <= 0 {
		return types.Black
	}
	return m.Cd.Scale(m.Kd * invPi).Mul(l.Radiance()).Scale(nDotWi)
}

// A matte material with an additional glossy specular lobe.
type Phong struct {
	Matte

	// Specular color, coefficient and exponent.
	Cs  types.Color
	Ks  float64
	Exp float64
}

// Create a phong material.
func NewPhong(name string, cd types.Color, ka, kd float64, cs types.Color, ks, exp float64) *Phong {
	return &Phong{
		Matte: Matte{MatName: name, Cd: cd, Ka: ka, Kd: kd},
		Cs:    cs,
		Ks:    ks,
		Exp:   exp,
	}
}

func (m *Phong) Shade(it Intersection, lights []*Light) types.Color {
	var out types.Color
	n, wo := shadingFrame(it)
	for _, l := range lights {
		out = out.Add(m.shadeLight(it, n, l))
		if l.Type == AmbientLight {
			continue
		}

		wi := l.DirectionFrom(it.HitPoint)
		nDotWi := n.Dot(wi)
		if nDotWi <= 0 {
			continue
		}

		// Mirror wi around the normal
		r := n.Mul(2 * nDotWi).Sub(wi)
		rDotWo := r.Dot(wo)
		if rDotWo <= 0 {
			continue
		}
		spec := m.Cs.Scale(m.Ks * math.Pow(rDotWo, m.Exp))
		out = out.Add(spec.Mul(l.Radiance()).Scale(nDotWi))
	}
	return out
}

// Get the shading normal (flipped to face the viewer) and the outgoing direction.
func shadingFrame(it Intersection) (n, wo types.Vec3) {
	wo = it.RayDir.Neg()
	n = it.Normal
	if n.Dot(wo) < 0 {
		n = n.Neg()
	}
	return n, wo
}
