package scene

import "github.com/achilleasa/darkray/types"

type LightType uint8

const (
	AmbientLight LightType = iota
	PointLight
	DirectionalLight
)

func (lt LightType) String() string {
	switch lt {
	case AmbientLight:
		return "ambient"
	case PointLight:
		return "point"
	case DirectionalLight:
		return "directional"
	}
	return "unknown"
}

// A scene light. Lights are immutable scene data.
type Light struct {
	Type LightType

	Color     types.Color
	Intensity float64

	// Light position (point lights) or the direction the light travels
	// towards (directional lights). Unused for ambient lights.
	Position  types.Vec3
	Direction types.Vec3
}

// Create an ambient light.
func NewAmbientLight(color types.Color, intensity float64) *Light {
	return &Light{
		Type:      AmbientLight,
		Color:     color,
		Intensity: intensity,
	}
}

// Create a point light. Point lights do not attenuate with distance.
func NewPointLight(color types.Color, intensity float64, pos types.Vec3) *Light {
	return &Light{
		Type:      PointLight,
		Color:     color,
		Intensity: intensity,
		Position:  pos,
	}
}

// Create a directional light travelling towards dir.
func NewDirectionalLight(color types.Color, intensity float64, dir types.Vec3) *Light {
	return &Light{
		Type:      DirectionalLight,
		Color:     color,
		Intensity: intensity,
		Direction: dir.Normalize(),
	}
}

// Get the incident radiance.
func (l *Light) Radiance() types.Color {
	return l.Color.Scale(l.Intensity)
}

// Get the unit vector from point p towards the light. Returns the zero
// vector for ambient lights.
func (l *Light) DirectionFrom(p types.Vec3) types.Vec3 {
	switch l.Type {
	case PointLight:
		return l.Position.Sub(p).Normalize()
	case DirectionalLight:
		return l.Direction.Neg()
	}
	return types.Vec3{}
}
