package tracer

import (
	"context"
	"time"

	"github.com/achilleasa/darkray/frame"
)

// The Tracer interface is implemented by all rendering backends. Render sets
// every pixel of the target frame exactly once. All backends must produce the
// same image for the same scene.
type Tracer interface {
	// Get tracer id.
	Id() string

	// Render the scene into the given frame. The frame dimensions must
	// match the camera resolution.
	Render(ctx context.Context, f *frame.Frame) error

	// Retrieve last frame statistics.
	Stats() *Stats

	// Shutdown and cleanup tracer. It is safe to call Close more than once.
	Close() error
}

// Timing information for a single render stage.
type StageStat struct {
	Name string
	Time time.Duration
}

// Tracer statistics.
type Stats struct {
	// Number of traced rays, mesh triangles and rays that hit a triangle.
	Rays      int
	Triangles int
	Hits      int

	// Per-stage timings in execution order.
	Stages []StageStat

	// The time for rendering the entire frame.
	RenderTime time.Duration
}

// Reset stats before a new frame.
func (s *Stats) Reset() {
	s.Rays, s.Triangles, s.Hits = 0, 0, 0
	s.Stages = s.Stages[:0]
	s.RenderTime = 0
}

// Record the time taken by a stage that started at the given time.
func (s *Stats) Track(name string, start time.Time) {
	s.Stages = append(s.Stages, StageStat{Name: name, Time: time.Since(start)})
}
