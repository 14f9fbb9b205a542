package scene

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/darkray/types"
)

var (
	ErrSceneNotDefined    = errors.New("scene: no scene defined")
	ErrCameraNotDefined   = errors.New("scene: no camera defined")
	ErrMeshNotDefined     = errors.New("scene: no mesh defined")
	ErrMaterialNotDefined = errors.New("scene: no material defined")
)

// A scene holds all render state that is shared by the tracers. A scene must
// not be modified once rendering starts.
type Scene struct {
	Camera *Camera

	Meshes    []*Mesh
	Materials []Material
	Lights    []*Light

	// Color for pixels whose rays miss all geometry.
	Background types.Color
}

func NewScene() *Scene {
	return &Scene{
		Meshes:    make([]*Mesh, 0),
		Materials: make([]Material, 0),
		Lights:    make([]*Light, 0),
	}
}

// Attach a camera to the scene.
func (s *Scene) SetCamera(camera *Camera) {
	s.Camera = camera
}

// Add a mesh to the scene.
func (s *Scene) AddMesh(mesh *Mesh) error {
	for _, m := range s.Meshes {
		if m == mesh {
			return fmt.Errorf("scene: mesh already added")
		}
	}
	s.Meshes = append(s.Meshes, mesh)
	return nil
}

// Add a material to the scene.
func (s *Scene) AddMaterial(material Material) error {
	for _, mat := range s.Materials {
		if mat == material {
			return fmt.Errorf("scene: material already added")
		}
	}
	s.Materials = append(s.Materials, material)
	return nil
}

// Add a light to the scene.
func (s *Scene) AddLight(light *Light) {
	s.Lights = append(s.Lights, light)
}

// The mesh that gets rendered. Only a single mesh is supported.
func (s *Scene) Mesh() *Mesh {
	if len(s.Meshes) == 0 {
		return nil
	}
	return s.Meshes[0]
}

// The material applied to the rendered mesh. Only a single material is supported.
func (s *Scene) Material() Material {
	if len(s.Materials) == 0 {
		return nil
	}
	return s.Materials[0]
}

// Verify that the scene contains everything required for rendering a frame.
func (s *Scene) Validate() error {
	if s == nil {
		return ErrSceneNotDefined
	}
	if s.Camera == nil {
		return ErrCameraNotDefined
	}
	if s.Mesh() == nil {
		return ErrMeshNotDefined
	}
	if s.Material() == nil {
		return ErrMaterialNotDefined
	}
	return nil
}

// Return a textual description of the scene contents.
func (s *Scene) Stats() string {
	var buf bytes.Buffer

	if s.Camera != nil {
		buf.WriteString(fmt.Sprintf("Camera:    %s\n", s.Camera))
	}
	for idx, m := range s.Meshes {
		bbox := m.BBox()
		buf.WriteString(fmt.Sprintf(
			"Mesh %02d:   %q, %d triangles, bbox (%3.3f, %3.3f, %3.3f) - (%3.3f, %3.3f, %3.3f)\n",
			idx, m.Name, len(m.Triangles),
			bbox[0][0], bbox[0][1], bbox[0][2],
			bbox[1][0], bbox[1][1], bbox[1][2],
		))
	}
	for idx, mat := range s.Materials {
		buf.WriteString(fmt.Sprintf("Material %02d: %q (%T)\n", idx, mat.Name(), mat))
	}
	for idx, l := range s.Lights {
		buf.WriteString(fmt.Sprintf("Light %02d:  %s, intensity %3.3f\n", idx, l.Type, l.Intensity))
	}

	return buf.String()
}
