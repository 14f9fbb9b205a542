package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/frame/writer"
	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/accel"
	"github.com/achilleasa/darkray/tracer/cpu"
)

type Renderer interface {
	// Render frame.
	Render(ctx context.Context) (*frame.Frame, error)

	// Encode a rendered frame and write it to the configured output file.
	Save(f *frame.Frame) error

	// Shutdown renderer and any attached tracer.
	Close() error

	// Get render statistics.
	Stats() FrameStats
}

// A renderer that drives a single tracer.
type defaultRenderer struct {
	logger log.Logger

	scene  *scene.Scene
	tracer tracer.Tracer
	opts   Options
	stats  FrameStats
}

// Create a new renderer for the given scene using the backend selected by opts.
func NewDefault(sc *scene.Scene, opts Options) (Renderer, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r := &defaultRenderer{
		logger: log.New("renderer"),
		scene:  sc,
		opts:   opts,
	}

	var err error
	switch opts.Backend {
	case BackendSoftware:
		r.tracer, err = cpu.NewTracer("cpu", sc, cpu.WithWorkers(opts.Workers), cpu.WithEngine(opts.Engine))
		if err == nil {
			r.logger.Infof("processing on the CPU using %d worker(s) and a %s intersection engine", opts.Workers, opts.Engine)
		}
	case BackendAccelerated:
		if err = accel.CheckCapacity(len(sc.Mesh().Triangles), sc.Camera.NumRays()); err != nil {
			return nil, err
		}
		r.tracer, err = accel.New(opts.DeviceDriver, sc, opts.DeviceDriver, opts.DevicePath, accel.WithPollTimeout(opts.PollTimeout))
		if err == nil {
			r.logger.Infof("processing on the accelerator using the %s driver", opts.DeviceDriver)
		}
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Render a frame with the camera resolution.
func (r *defaultRenderer) Render(ctx context.Context) (*frame.Frame, error) {
	if r.tracer == nil {
		return nil, tracer.ErrTracerClosed
	}

	cam := r.scene.Camera
	f, err := frame.New(cam.HRes, cam.VRes)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("rendering %dx%d frame (%d rays, %d triangles)", cam.HRes, cam.VRes, cam.NumRays(), len(r.scene.Mesh().Triangles))

	start := time.Now()
	cpuStart := processCPUTime()
	if err = r.tracer.Render(ctx, f); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return nil, err
	}

	trStats := r.tracer.Stats()
	r.stats = FrameStats{
		Backend:    r.opts.Backend,
		TracerId:   r.tracer.Id(),
		FrameW:     f.Width(),
		FrameH:     f.Height(),
		Rays:       trStats.Rays,
		Triangles:  trStats.Triangles,
		Hits:       trStats.Hits,
		Stages:     append([]tracer.StageStat(nil), trStats.Stages...),
		RenderTime: time.Since(start),
		CPUTime:    processCPUTime() - cpuStart,
	}
	r.logger.Infof("rendered frame in %d ms", r.stats.RenderTime.Nanoseconds()/1e6)

	return f, nil
}

// Write the frame to the configured output file.
func (r *defaultRenderer) Save(f *frame.Frame) error {
	if r.opts.OutputFile == "" {
		return fmt.Errorf("%w: no output file specified", tracer.ErrConfiguration)
	}

	start := time.Now()
	if err := writer.WriteFrame(f, r.opts.OutputFile); err != nil {
		return err
	}
	r.stats.SaveTime = time.Since(start)
	r.logger.Noticef("saved frame to %s", r.opts.OutputFile)
	return nil
}

// Shutdown renderer and release the tracer.
func (r *defaultRenderer) Close() error {
	if r.tracer == nil {
		return nil
	}
	err := r.tracer.Close()
	r.tracer = nil
	return err
}

// Get render statistics for the last frame.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}
