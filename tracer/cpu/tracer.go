package cpu

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/intersect"
	"golang.org/x/sync/errgroup"
)

// An option that can be passed to NewTracer.
type Option func(tr *Tracer)

// Set the number of goroutines that trace rows in parallel. A value of 1
// renders the frame sequentially on the calling goroutine. Values < 1 select
// the number of available CPUs.
func WithWorkers(workers int) Option {
	return func(tr *Tracer) {
		if workers < 1 {
			workers = runtime.NumCPU()
		}
		tr.workers = workers
	}
}

// Select the acceleration structure used for intersection queries.
func WithEngine(kind intersect.Kind) Option {
	return func(tr *Tracer) {
		tr.engineKind = kind
	}
}

// A tracer that generates, intersects and shades rays on the host CPU.
type Tracer struct {
	logger log.Logger

	sync.Mutex

	id         string
	scene      *scene.Scene
	engine     intersect.Engine
	engineKind intersect.Kind
	workers    int
	closed     bool

	// Statistics for last rendered frame.
	stats *tracer.Stats
}

// Create a new cpu tracer for the given scene.
func NewTracer(id string, sc *scene.Scene, opts ...Option) (*Tracer, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	tr := &Tracer{
		logger:  log.New(fmt.Sprintf("cpu tracer (%s)", id)),
		id:      id,
		scene:   sc,
		workers: runtime.NumCPU(),
		stats:   &tracer.Stats{},
	}
	for _, opt := range opts {
		opt(tr)
	}

	start := time.Now()
	engine, err := intersect.New(tr.engineKind, sc.Mesh())
	if err != nil {
		return nil, err
	}
	tr.engine = engine

	switch e := engine.(type) {
	case *intersect.Grid:
		tr.logger.Debugf("built %v grid for %d triangles in %d ms", e.Dimensions(), len(sc.Mesh().Triangles), time.Since(start).Milliseconds())
	case *intersect.BVH:
		nodes, depth := e.Size()
		tr.logger.Debugf("built bvh with %d nodes (depth %d) for %d triangles in %d ms", nodes, depth, len(sc.Mesh().Triangles), time.Since(start).Milliseconds())
	}

	return tr, nil
}

// Get tracer id.
func (tr *Tracer) Id() string {
	return tr.id
}

// Retrieve last frame statistics.
func (tr *Tracer) Stats() *tracer.Stats {
	return tr.stats
}

// Shutdown tracer.
func (tr *Tracer) Close() error {
	tr.Lock()
	defer tr.Unlock()

	tr.closed = true
	return nil
}

// Render the scene into the given frame.
func (tr *Tracer) Render(ctx context.Context, f *frame.Frame) error {
	tr.Lock()
	defer tr.Unlock()

	if tr.closed {
		return tracer.ErrTracerClosed
	}
	if err := tracer.CheckFrame(tr.scene, f); err != nil {
		return err
	}

	tr.stats.Reset()
	start := time.Now()
	tr.stats.Rays = tr.scene.Camera.NumRays()
	tr.stats.Triangles = len(tr.scene.Mesh().Triangles)

	blocks := tracer.SplitRows(f.Height(), tr.workers)
	hits := make([]int, len(blocks))

	stageStart := time.Now()
	if len(blocks) == 1 {
		if err := tr.renderBlock(ctx, f, blocks[0], &hits[0]); err != nil {
			return err
		}
	} else {
		group, groupCtx := errgroup.WithContext(ctx)
		for idx := range blocks {
			block, blockHits := blocks[idx], &hits[idx]
			group.Go(func() error {
				return tr.renderBlock(groupCtx, f, block, blockHits)
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	}
	tr.stats.Track("trace and shade", stageStart)

	for _, blockHits := range hits {
		tr.stats.Hits += blockHits
	}
	tr.stats.RenderTime = time.Since(start)
	tr.logger.Debugf(
		"rendered %d rays (%d hits) using %d block(s) in %d ms",
		tr.stats.Rays, tr.stats.Hits, len(blocks), tr.stats.RenderTime.Nanoseconds()/1e6,
	)

	return nil
}

// Trace and shade all pixels of a row block. Each pixel is written exactly
// once and blocks never overlap so no frame locking is required.
func (tr *Tracer) renderBlock(ctx context.Context, f *frame.Frame, block tracer.BlockRequest, hits *int) error {
	cam := tr.scene.Camera
	for row := block.BlockY; row < block.BlockY+block.BlockH; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for col := 0; col < cam.HRes; col++ {
			ray, err := cam.Ray(row, col)
			if err != nil {
				return err
			}

			it := tr.engine.ClosestHit(ray)
			if it.Hit {
				*hits++
			}

			if err = f.SetPixel(col, row, tracer.ShadePixel(tr.scene, it)); err != nil {
				return err
			}
		}
	}
	return nil
}
