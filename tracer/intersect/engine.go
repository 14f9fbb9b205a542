package intersect

import (
	"fmt"
	"strings"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
)

// The acceleration structure used by an Engine.
type Kind uint8

// Supported engine kinds.
const (
	KindLinear Kind = iota
	KindGrid
	KindBVH
)

func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindGrid:
		return "grid"
	case KindBVH:
		return "bvh"
	}
	return "unknown"
}

// Parse an engine kind name (linear, grid or bvh).
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "linear", "":
		return KindLinear, nil
	case "grid":
		return KindGrid, nil
	case "bvh":
		return KindBVH, nil
	}
	return KindLinear, fmt.Errorf("%w: unknown intersection engine %q; expected linear, grid or bvh", tracer.ErrConfiguration, name)
}

// Build an engine of the requested kind for the mesh.
func New(kind Kind, mesh *scene.Mesh) (Engine, error) {
	switch kind {
	case KindLinear:
		return NewLinear(mesh), nil
	case KindGrid:
		return NewGrid(mesh), nil
	case KindBVH:
		return NewBVH(mesh), nil
	}
	return nil, fmt.Errorf("%w: unknown intersection engine %d", tracer.ErrConfiguration, kind)
}
