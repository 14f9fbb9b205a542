package scene

import "github.com/achilleasa/darkray/types"

// An ordered list of triangles. Triangle ids always match their position
// in the Triangles slice.
type Mesh struct {
	Name      string
	Triangles []*Triangle
}

// Create an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:      name,
		Triangles: make([]*Triangle, 0),
	}
}

// Append a triangle to the mesh and assign its id.
func (m *Mesh) AddTriangle(tri *Triangle) {
	tri.Id = len(m.Triangles)
	m.Triangles = append(m.Triangles, tri)
}

// Get the mesh bounding box. An empty mesh returns a zero box.
func (m *Mesh) BBox() [2]types.Vec3 {
	if len(m.Triangles) == 0 {
		return [2]types.Vec3{}
	}

	bbox := m.Triangles[0].BBox()
	for _, tri := range m.Triangles[1:] {
		triBox := tri.BBox()
		bbox[0] = types.MinVec3(bbox[0], triBox[0])
		bbox[1] = types.MaxVec3(bbox[1], triBox[1])
	}
	return bbox
}
