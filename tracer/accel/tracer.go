package accel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/accel/device"
	"github.com/achilleasa/darkray/tracer/accel/layout"
)

const (
	DefaultPollTimeout  = 30 * time.Second
	DefaultPollInterval = 100 * time.Microsecond
)

// An option that can be passed to New.
type Option func(tr *Tracer)

// Set the maximum time to wait for the core to become idle after starting it.
func WithPollTimeout(timeout time.Duration) Option {
	return func(tr *Tracer) {
		if timeout > 0 {
			tr.pollTimeout = timeout
		}
	}
}

// Set the delay between consecutive AP_CTRL reads while polling.
func WithPollInterval(interval time.Duration) Option {
	return func(tr *Tracer) {
		if interval >= 0 {
			tr.pollInterval = interval
		}
	}
}

// Register a function that is invoked on every state transition.
func WithTransitionHook(hook func(from, to State)) Option {
	return func(tr *Tracer) {
		tr.onTransition = hook
	}
}

// A tracer that offloads intersection tests to an accelerator. Rays and
// triangles are sent to the device as a single batch; the host only shades
// the returned hits.
type Tracer struct {
	logger log.Logger

	sync.Mutex

	id     string
	scene  *scene.Scene
	dev    device.Device
	memMap layout.MemoryMap

	pollTimeout  time.Duration
	pollInterval time.Duration
	onTransition func(from, to State)

	state   State
	buffers *hostBuffers
	closed  bool

	// Statistics for last rendered frame.
	stats *tracer.Stats
}

// Create a new accelerated tracer that opens a device using the named driver.
func New(id string, sc *scene.Scene, driver, path string, opts ...Option) (*Tracer, error) {
	if err := checkScene(sc); err != nil {
		return nil, err
	}

	dev, err := device.Open(driver, path)
	if err != nil {
		return nil, err
	}

	return NewWithDevice(id, sc, dev, opts...)
}

// Create a new accelerated tracer for an already open device. The tracer
// takes ownership of the device and closes it when the tracer is closed or
// when NewWithDevice fails.
func NewWithDevice(id string, sc *scene.Scene, dev device.Device, opts ...Option) (*Tracer, error) {
	if err := checkScene(sc); err != nil {
		dev.Close()
		return nil, err
	}

	tr := &Tracer{
		logger:       log.New(fmt.Sprintf("accel tracer (%s)", id)),
		id:           id,
		scene:        sc,
		dev:          dev,
		memMap:       layout.DefaultMemoryMap,
		pollTimeout:  DefaultPollTimeout,
		pollInterval: DefaultPollInterval,
		stats:        &tracer.Stats{},
	}
	for _, opt := range opts {
		opt(tr)
	}

	tr.logger.Debugf("using device %s", dev.Name())
	return tr, nil
}

// Ensure that the scene is renderable and fits the accelerator capacity.
func checkScene(sc *scene.Scene) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return CheckCapacity(len(sc.Mesh().Triangles), sc.Camera.NumRays())
}

// Check that a batch with the given triangle and ray counts fits the accelerator.
func CheckCapacity(numTris, numRays int) error {
	if numTris > layout.MaxTriangles {
		return fmt.Errorf("%w: mesh has %d triangles; accelerator supports up to %d", tracer.ErrCapacityExceeded, numTris, layout.MaxTriangles)
	}
	if numRays > layout.MaxRays {
		return fmt.Errorf("%w: frame requires %d rays; accelerator supports up to %d", tracer.ErrCapacityExceeded, numRays, layout.MaxRays)
	}
	return nil
}

// Get tracer id.
func (tr *Tracer) Id() string {
	return tr.id
}

// Get the current tracer state.
func (tr *Tracer) State() State {
	tr.Lock()
	defer tr.Unlock()
	return tr.state
}

// Retrieve last frame statistics.
func (tr *Tracer) Stats() *tracer.Stats {
	return tr.stats
}

// Shutdown tracer and release the device.
func (tr *Tracer) Close() error {
	tr.Lock()
	defer tr.Unlock()

	if tr.closed {
		return nil
	}
	tr.closed = true
	tr.releaseBuffers()

	if err := tr.dev.Close(); err != nil {
		return fmt.Errorf("accel tracer (%s): could not close device: %w", tr.id, err)
	}
	return nil
}

// Render the scene into the given frame. A failed render leaves the tracer
// in the Failed state; subsequent calls to Render return ErrTracerFailed.
func (tr *Tracer) Render(ctx context.Context, f *frame.Frame) (err error) {
	tr.Lock()
	defer tr.Unlock()

	if tr.closed {
		return tracer.ErrTracerClosed
	}
	if tr.state == Failed {
		return tracer.ErrTracerFailed
	}
	if err = tracer.CheckFrame(tr.scene, f); err != nil {
		return err
	}

	defer func() {
		tr.releaseBuffers()
		if err != nil {
			tr.logger.Errorf("render failed in state %s: %v", tr.state, err)
			tr.transition(Failed)
		}
	}()

	tr.stats.Reset()
	start := time.Now()
	tris := tr.scene.Mesh().Triangles
	rays := tr.scene.Camera.Rays()
	tr.stats.Rays = len(rays)
	tr.stats.Triangles = len(tris)

	stageStart := time.Now()
	if tr.buffers, err = allocBuffers(len(tris), len(rays)); err != nil {
		return err
	}
	if err = tr.buffers.marshal(tris, rays); err != nil {
		return fmt.Errorf("%w: %v", tracer.ErrAllocationFailure, err)
	}
	tr.transition(BuffersAllocated)
	tr.stats.Track("allocate and marshal", stageStart)

	stageStart = time.Now()
	if err = tr.upload(len(tris), len(rays)); err != nil {
		return err
	}
	tr.transition(DataTransferred)
	tr.stats.Track("host to device", stageStart)

	stageStart = time.Now()
	if err = tr.writeReg(device.RegApCtrl, device.CtrlStart); err != nil {
		return err
	}
	tr.transition(Started)

	tr.transition(Polling)
	if err = tr.poll(ctx); err != nil {
		return err
	}
	tr.stats.Track("intersect", stageStart)

	stageStart = time.Now()
	if err = tr.readDMA(tr.memMap.OutIds, tr.buffers.outIds); err != nil {
		return err
	}
	if err = tr.readDMA(tr.memMap.OutT, tr.buffers.outT); err != nil {
		return err
	}
	tr.transition(ResultsTransferred)
	tr.stats.Track("device to host", stageStart)

	stageStart = time.Now()
	if err = tr.shade(f, tris, rays); err != nil {
		return err
	}
	tr.transition(Shaded)
	tr.stats.Track("shade", stageStart)

	tr.transition(Idle)
	tr.stats.RenderTime = time.Since(start)
	tr.logger.Debugf(
		"rendered %d rays (%d hits) against %d triangles in %d ms",
		tr.stats.Rays, tr.stats.Hits, tr.stats.Triangles, tr.stats.RenderTime.Nanoseconds()/1e6,
	)

	return nil
}

// Program the core registers and copy the input buffers to the device.
func (tr *Tracer) upload(numTris, numRays int) error {
	ctrl, err := tr.readReg(device.RegApCtrl)
	if err != nil {
		return err
	}
	tr.logger.Debugf("core status before programming: AP_CTRL 0x%x", ctrl)
	if !device.IsIdle(ctrl) {
		return fmt.Errorf("%w: %s core is busy (AP_CTRL 0x%x)", tracer.ErrDeviceUnavailable, tr.dev.Name(), ctrl)
	}

	regs := []struct {
		offset uint32
		value  uint64
	}{
		{device.RegTriCount, uint64(numTris)},
		{device.RegTriIds, tr.memMap.TriIds},
		{device.RegTriData, tr.memMap.Tris},
		{device.RegRayCount, uint64(numRays)},
		{device.RegRayData, tr.memMap.Rays},
		{device.RegOutIds, tr.memMap.OutIds},
		{device.RegOutT, tr.memMap.OutT},
	}
	for _, reg := range regs {
		if err = tr.writeReg(reg.offset, reg.value); err != nil {
			return err
		}
	}

	if err = tr.writeDMA(tr.memMap.Tris, tr.buffers.tris); err != nil {
		return err
	}
	if err = tr.writeDMA(tr.memMap.TriIds, tr.buffers.triIds); err != nil {
		return err
	}
	return tr.writeDMA(tr.memMap.Rays, tr.buffers.rays)
}

// Poll AP_CTRL until the core reports idle with the start bit cleared. The
// done bit clears on read so it is latched across polls; a core that goes idle
// without ever raising done did not produce results.
func (tr *Tracer) poll(ctx context.Context) error {
	pollCtx, cancel := context.WithTimeout(ctx, tr.pollTimeout)
	defer cancel()

	var done bool
	for numReads := 1; ; numReads++ {
		ctrl, err := tr.readReg(device.RegApCtrl)
		if err != nil {
			return err
		}
		done = done || ctrl&device.CtrlDone != 0
		if device.IsIdle(ctrl) {
			if !done {
				return fmt.Errorf("%w: %s core went idle without signalling completion (AP_CTRL 0x%x)", tracer.ErrTransferFailure, tr.dev.Name(), ctrl)
			}
			tr.logger.Debugf("core finished after %d AP_CTRL reads", numReads)
			return nil
		}

		select {
		case <-pollCtx.Done():
			if errors.Is(pollCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w: %s core still busy after %s (AP_CTRL 0x%x)", tracer.ErrDeviceTimeout, tr.dev.Name(), tr.pollTimeout, ctrl)
			}
			return ctx.Err()
		case <-time.After(tr.pollInterval):
		}
	}
}

// Rebuild the intersection for each ray from the returned triangle id and
// distance and write the shaded pixels to the frame in raster order.
func (tr *Tracer) shade(f *frame.Frame, tris []*scene.Triangle, rays []scene.Ray) error {
	width := f.Width()
	for idx, ray := range rays {
		it := scene.NoHit
		hitId := layout.Int32At(tr.buffers.outIds, idx)
		if hitId != layout.MissId {
			if hitId < 0 || int(hitId) >= len(tris) {
				return fmt.Errorf("%w: device returned invalid triangle id %d for ray %d", tracer.ErrTransferFailure, hitId, idx)
			}
			it = scene.NewIntersection(ray, tris[hitId], layout.Float64At(tr.buffers.outT, idx))
			tr.stats.Hits++
		}

		if err := f.SetPixel(idx%width, idx/width, tracer.ShadePixel(tr.scene, it)); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Tracer) transition(next State) {
	if tr.state == next || !tr.state.CanTransition(next) {
		return
	}

	prev := tr.state
	tr.state = next
	tr.logger.Debugf("state %s -> %s", prev, next)
	if tr.onTransition != nil {
		tr.onTransition(prev, next)
	}
}

func (tr *Tracer) releaseBuffers() {
	if tr.buffers != nil {
		tr.buffers.release()
		tr.buffers = nil
	}
}

func (tr *Tracer) readReg(offset uint32) (uint64, error) {
	val, err := tr.dev.ReadReg(offset)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: read %s: %v", tracer.ErrTransferFailure, tr.dev.Name(), device.RegName(offset), err)
	}
	return val, nil
}

func (tr *Tracer) writeReg(offset uint32, value uint64) error {
	if err := tr.dev.WriteReg(offset, value); err != nil {
		return fmt.Errorf("%w: %s: write %s = 0x%x: %v", tracer.ErrTransferFailure, tr.dev.Name(), device.RegName(offset), value, err)
	}
	return nil
}

func (tr *Tracer) writeDMA(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := tr.dev.WriteDMA(addr, data); err != nil {
		return fmt.Errorf("%w: %s: DMA write of %d bytes at 0x%x: %v", tracer.ErrTransferFailure, tr.dev.Name(), len(data), addr, err)
	}
	return nil
}

func (tr *Tracer) readDMA(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := tr.dev.ReadDMA(addr, data); err != nil {
		return fmt.Errorf("%w: %s: DMA read of %d bytes at 0x%x: %v", tracer.ErrTransferFailure, tr.dev.Name(), len(data), addr, err)
	}
	return nil
}
