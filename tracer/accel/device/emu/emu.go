// Package emu provides an in-process emulation of the intersect core. The
// emulated core runs on its own goroutine and exposes the same register and
// memory interface as the hardware so the accelerated tracer can be exercised
// without an accelerator card.
package emu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer/accel/device"
	"github.com/achilleasa/darkray/tracer/accel/layout"
	"github.com/achilleasa/darkray/tracer/intersect"
)

// The name used for registering this driver.
const DriverName = "emu"

var errDeviceClosed = errors.New("emu: device is closed")

func init() {
	device.Register(DriverName, func(string) (device.Device, error) {
		return New(), nil
	})
}

// An option that can be passed to New.
type Option func(d *Device)

// Delay completion of each run by the given duration.
func WithLatency(latency time.Duration) Option {
	return func(d *Device) {
		d.latency = latency
	}
}

// Use a custom memory map. The memory map determines the addressable
// device memory range.
func WithMemoryMap(memMap layout.MemoryMap) Option {
	return func(d *Device) {
		d.memMap = memMap
	}
}

// An emulated intersect core.
type Device struct {
	logger log.Logger

	// Guards registers, memory and the closed flag.
	mutex sync.Mutex
	wg    sync.WaitGroup

	regs    map[uint32]uint64
	mem     *memory
	memMap  layout.MemoryMap
	latency time.Duration
	closed  bool

	// Number of completed runs.
	runs int
}

// Create a new emulated device.
func New(opts ...Option) *Device {
	d := &Device{
		logger: log.New("emu device"),
		regs:   map[uint32]uint64{device.RegApCtrl: device.CtrlIdle},
		mem:    newMemory(),
		memMap: layout.DefaultMemoryMap,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Name() string {
	return DriverName
}

// Get the number of completed runs.
func (d *Device) Runs() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.runs
}

func (d *Device) ReadReg(offset uint32) (uint64, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return 0, errDeviceClosed
	}

	val := d.regs[offset]
	if offset == device.RegApCtrl {
		d.regs[offset] &^= device.CtrlDone
	}
	return val, nil
}

func (d *Device) WriteReg(offset uint32, value uint64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return errDeviceClosed
	}

	if offset != device.RegApCtrl {
		d.regs[offset] = value
		return nil
	}

	// Only the start bit is writable; ignore start requests while busy.
	if value&device.CtrlStart == 0 || d.regs[offset]&device.CtrlIdle == 0 {
		return nil
	}

	d.regs[offset] = device.CtrlStart
	d.wg.Add(1)
	go d.run(d.snapshotArgs())
	return nil
}

func (d *Device) WriteDMA(addr uint64, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return errDeviceClosed
	}
	if err := d.checkRange(addr, len(data)); err != nil {
		return err
	}
	d.mem.write(addr, data)
	return nil
}

func (d *Device) ReadDMA(addr uint64, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return errDeviceClosed
	}
	if err := d.checkRange(addr, len(data)); err != nil {
		return err
	}
	d.mem.read(addr, data)
	return nil
}

// Shut down the device. Close blocks until any in-flight run completes.
func (d *Device) Close() error {
	d.mutex.Lock()
	d.closed = true
	d.mutex.Unlock()

	d.wg.Wait()
	return nil
}

func (d *Device) checkRange(addr uint64, size int) error {
	if addr > d.memMap.End || uint64(size) > d.memMap.End-addr {
		return fmt.Errorf("emu: DMA range [0x%x, 0x%x) outside device memory [0, 0x%x)", addr, addr+uint64(size), d.memMap.End)
	}
	return nil
}

// Core arguments latched when the start bit is written.
type coreArgs struct {
	triCount, rayCount                            int
	triAddr, idAddr, rayAddr, outTAddr, outIdAddr uint64
}

// Latch the core arguments. Called while holding d.mutex.
func (d *Device) snapshotArgs() coreArgs {
	return coreArgs{
		triCount:  int(d.regs[device.RegTriCount]),
		rayCount:  int(d.regs[device.RegRayCount]),
		triAddr:   d.regs[device.RegTriData],
		idAddr:    d.regs[device.RegTriIds],
		rayAddr:   d.regs[device.RegRayData],
		outTAddr:  d.regs[device.RegOutT],
		outIdAddr: d.regs[device.RegOutIds],
	}
}

// Execute the intersect core and signal completion through AP_CTRL.
func (d *Device) run(args coreArgs) {
	defer d.wg.Done()

	// A failed run returns to idle without raising done; the output
	// regions are left untouched.
	ctrl := device.CtrlIdle | device.CtrlReady
	start := time.Now()
	if err := d.intersect(args); err != nil {
		d.logger.Errorf("core run failed: %v", err)
	} else {
		ctrl |= device.CtrlDone
		d.logger.Debugf("intersected %d rays against %d triangles in %d ms", args.rayCount, args.triCount, time.Since(start).Nanoseconds()/1e6)
	}

	if d.latency > 0 {
		time.Sleep(d.latency)
	}

	d.mutex.Lock()
	d.regs[device.RegApCtrl] = ctrl
	d.runs++
	d.mutex.Unlock()
}

func (d *Device) intersect(args coreArgs) error {
	if args.triCount < 0 || args.triCount > layout.MaxTriangles || args.rayCount < 0 || args.rayCount > layout.MaxRays {
		return fmt.Errorf("emu: counts out of range (triangles %d, rays %d)", args.triCount, args.rayCount)
	}

	triData := make([]byte, args.triCount*layout.TriangleStride)
	idData := make([]byte, args.triCount*layout.TriIdStride)
	rayData := make([]byte, args.rayCount*layout.RayStride)

	d.mutex.Lock()
	closed := d.closed
	if !closed {
		d.mem.read(args.triAddr, triData)
		d.mem.read(args.idAddr, idData)
		d.mem.read(args.rayAddr, rayData)
	}
	d.mutex.Unlock()
	if closed {
		return errDeviceClosed
	}

	tris, err := layout.DecodeTriangles(triData, args.triCount)
	if err != nil {
		return err
	}
	rays, err := layout.DecodeRays(rayData, args.rayCount)
	if err != nil {
		return err
	}

	mesh := &scene.Mesh{Name: "emu", Triangles: tris}
	outT := make([]byte, args.rayCount*layout.OutTStride)
	outIds := make([]byte, args.rayCount*layout.OutIdStride)
	for idx, ray := range rays {
		it := intersect.ClosestHit(ray, mesh)
		if !it.Hit {
			layout.PutInt32At(outIds, idx, layout.MissId)
			continue
		}
		layout.PutInt32At(outIds, idx, layout.Int32At(idData, it.TriangleId))
		layout.PutFloat64At(outT, idx, it.T)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.mem.write(args.outTAddr, outT)
	d.mem.write(args.outIdAddr, outIds)
	return nil
}
