package layout

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/types"
)

// Accelerator capacities.
const (
	MaxTriangles = 50000
	MaxRays      = 921600
)

// Element sizes in bytes.
const (
	float64Size = 8
	int32Size   = 4

	TriangleStride = scene.TriangleAttributes * float64Size
	RayStride      = scene.RayAttributes * float64Size
	TriIdStride    = int32Size
	OutIdStride    = int32Size
	OutTStride     = float64Size
)

// Id reported by the device for rays that miss all triangles.
const MissId = -1

// Base addresses of the device buffers.
type MemoryMap struct {
	Tris   uint64
	TriIds uint64
	Rays   uint64
	OutT   uint64
	OutIds uint64

	// One past the last addressable byte.
	End uint64
}

// The memory map of the intersect core.
var DefaultMemoryMap = NewMemoryMap(MaxTriangles, MaxRays)

// Lay out the device buffers back to back for the given capacities.
func NewMemoryMap(maxTris, maxRays int) MemoryMap {
	var m MemoryMap
	m.Tris = 0
	m.TriIds = m.Tris + uint64(TriangleStride*maxTris)
	m.Rays = m.TriIds + uint64(TriIdStride*maxTris)
	m.OutT = m.Rays + uint64(RayStride*maxRays)
	m.OutIds = m.OutT + uint64(OutTStride*maxRays)
	m.End = m.OutIds + uint64(OutIdStride*maxRays)
	return m
}

// Serialize triangle vertices (p1, p2, p3) into dst which must hold
// len(tris)*TriangleStride bytes.
func EncodeTriangles(dst []byte, tris []*scene.Triangle) error {
	if err := checkLen("triangle", dst, len(tris)*TriangleStride); err != nil {
		return err
	}
	for idx, tri := range tris {
		off := idx * TriangleStride
		putVec3(dst[off:], tri.P1)
		putVec3(dst[off+24:], tri.P2)
		putVec3(dst[off+48:], tri.P3)
	}
	return nil
}

// Serialize triangle ids into dst which must hold len(tris)*TriIdStride bytes.
func EncodeTriangleIds(dst []byte, tris []*scene.Triangle) error {
	if err := checkLen("triangle id", dst, len(tris)*TriIdStride); err != nil {
		return err
	}
	for idx, tri := range tris {
		binary.LittleEndian.PutUint32(dst[idx*TriIdStride:], uint32(int32(tri.Id)))
	}
	return nil
}

// Serialize rays (origin, dir) into dst which must hold len(rays)*RayStride bytes.
func EncodeRays(dst []byte, rays []scene.Ray) error {
	if err := checkLen("ray", dst, len(rays)*RayStride); err != nil {
		return err
	}
	for idx, ray := range rays {
		off := idx * RayStride
		putVec3(dst[off:], ray.Origin)
		putVec3(dst[off+24:], ray.Dir)
	}
	return nil
}

// Deserialize count triangles. Triangle normals are recalculated and ids
// are assigned from the triangle position.
func DecodeTriangles(src []byte, count int) ([]*scene.Triangle, error) {
	if err := checkLen("triangle", src, count*TriangleStride); err != nil {
		return nil, err
	}
	tris := make([]*scene.Triangle, count)
	for idx := range tris {
		off := idx * TriangleStride
		tris[idx] = scene.NewTriangle(getVec3(src[off:]), getVec3(src[off+24:]), getVec3(src[off+48:]))
		tris[idx].Id = idx
	}
	return tris, nil
}

// Deserialize count rays. Ray directions are used as-is.
func DecodeRays(src []byte, count int) ([]scene.Ray, error) {
	if err := checkLen("ray", src, count*RayStride); err != nil {
		return nil, err
	}
	rays := make([]scene.Ray, count)
	for idx := range rays {
		off := idx * RayStride
		rays[idx] = scene.Ray{Origin: getVec3(src[off:]), Dir: getVec3(src[off+24:])}
	}
	return rays, nil
}

// Get the int32 value at index idx.
func Int32At(src []byte, idx int) int32 {
	return int32(binary.LittleEndian.Uint32(src[idx*int32Size:]))
}

// Set the int32 value at index idx.
func PutInt32At(dst []byte, idx int, v int32) {
	binary.LittleEndian.PutUint32(dst[idx*int32Size:], uint32(v))
}

// Get the float64 value at index idx.
func Float64At(src []byte, idx int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src[idx*float64Size:]))
}

// Set the float64 value at index idx.
func PutFloat64At(dst []byte, idx int, v float64) {
	binary.LittleEndian.PutUint64(dst[idx*float64Size:], math.Float64bits(v))
}

func putVec3(dst []byte, v types.Vec3) {
	PutFloat64At(dst, 0, v[0])
	PutFloat64At(dst, 1, v[1])
	PutFloat64At(dst, 2, v[2])
}

func getVec3(src []byte) types.Vec3 {
	return types.XYZ(Float64At(src, 0), Float64At(src, 1), Float64At(src, 2))
}

func checkLen(kind string, buf []byte, exp int) error {
	if len(buf) < exp {
		return fmt.Errorf("layout: %s buffer too small; need %d bytes, got %d", kind, exp, len(buf))
	}
	return nil
}
