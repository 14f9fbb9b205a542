package renderer

import (
	"time"

	"github.com/achilleasa/darkray/tracer"
)

type FrameStats struct {
	// The backend and the id of the tracer that rendered the frame.
	Backend  Backend
	TracerId string

	// Frame dimensions.
	FrameW int
	FrameH int

	// Number of traced rays, mesh triangles and rays that hit a triangle.
	Rays      int
	Triangles int
	Hits      int

	// Per-stage timings reported by the tracer.
	Stages []tracer.StageStat

	// Wall clock and process CPU time for rendering the entire frame.
	RenderTime time.Duration
	CPUTime    time.Duration

	// Time spent encoding and writing the output image.
	SaveTime time.Duration
}
