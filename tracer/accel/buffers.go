package accel

import (
	"fmt"
	"math"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/accel/layout"
)

// Host-side staging buffers for a single batch.
type hostBuffers struct {
	tris   []byte
	triIds []byte
	rays   []byte
	outT   []byte
	outIds []byte
}

// Allocate staging buffers for the given triangle and ray counts.
func allocBuffers(numTris, numRays int) (bufs *hostBuffers, err error) {
	if numTris < 0 || numRays < 0 ||
		numTris > math.MaxInt/layout.TriangleStride || numRays > math.MaxInt/layout.RayStride {
		return nil, fmt.Errorf("%w: invalid buffer sizes (triangles %d, rays %d)", tracer.ErrAllocationFailure, numTris, numRays)
	}

	// make panics if a size cannot be satisfied by the runtime.
	defer func() {
		if r := recover(); r != nil {
			bufs = nil
			err = fmt.Errorf("%w: %v", tracer.ErrAllocationFailure, r)
		}
	}()

	return &hostBuffers{
		tris:   make([]byte, numTris*layout.TriangleStride),
		triIds: make([]byte, numTris*layout.TriIdStride),
		rays:   make([]byte, numRays*layout.RayStride),
		outT:   make([]byte, numRays*layout.OutTStride),
		outIds: make([]byte, numRays*layout.OutIdStride),
	}, nil
}

// Serialize the mesh triangles and the camera rays into the staging buffers.
func (b *hostBuffers) marshal(tris []*scene.Triangle, rays []scene.Ray) error {
	if err := layout.EncodeTriangles(b.tris, tris); err != nil {
		return err
	}
	if err := layout.EncodeTriangleIds(b.triIds, tris); err != nil {
		return err
	}
	return layout.EncodeRays(b.rays, rays)
}

// Drop references to the staging buffers.
func (b *hostBuffers) release() {
	b.tris, b.triIds, b.rays, b.outT, b.outIds = nil, nil, nil, nil, nil
}
