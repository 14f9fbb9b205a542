//go:build opencl

package cldev

import (
	"fmt"
	"sync"

	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/tracer/accel/device"
	"github.com/achilleasa/darkray/tracer/accel/layout"
	"github.com/jgillich/go-opencl/cl"
)

func init() {
	device.Register(DriverName, func(path string) (device.Device, error) {
		return Open(path)
	})
}

// An intersect core running as an opencl kernel.
type Device struct {
	logger log.Logger

	mutex sync.Mutex
	regs  map[uint32]uint64

	ctx     *clContext
	kernel  *kernel
	buffers []*buffer
}

// Open the first opencl device whose name contains matchName and allocate
// device buffers for the default memory map.
func Open(matchName string) (*Device, error) {
	info, err := selectDevice(matchName)
	if err != nil {
		return nil, err
	}

	ctx, err := newContext(info.name, info.dev)
	if err != nil {
		return nil, err
	}

	d := &Device{
		logger: log.New(fmt.Sprintf("opencl device (%s)", info.name)),
		regs:   map[uint32]uint64{device.RegApCtrl: device.CtrlIdle},
		ctx:    ctx,
	}

	if d.kernel, err = newKernel(ctx, "intersect"); err != nil {
		d.Close()
		return nil, err
	}

	memMap := layout.DefaultMemoryMap
	regions := []struct {
		name  string
		base  uint64
		end   uint64
		flags cl.MemFlag
	}{
		{"triangles", memMap.Tris, memMap.TriIds, cl.MemReadOnly},
		{"triangle ids", memMap.TriIds, memMap.Rays, cl.MemReadOnly},
		{"rays", memMap.Rays, memMap.OutT, cl.MemReadOnly},
		{"out t", memMap.OutT, memMap.OutIds, cl.MemWriteOnly},
		{"out ids", memMap.OutIds, memMap.End, cl.MemWriteOnly},
	}
	for _, r := range regions {
		buf, err := newBuffer(ctx, r.name, r.base, int(r.end-r.base), r.flags)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.buffers = append(d.buffers, buf)
	}

	d.logger.Debugf("allocated %d bytes of device memory", memMap.End)
	return d, nil
}

func (d *Device) Name() string {
	return fmt.Sprintf("%s (%s)", DriverName, d.ctx.name)
}

func (d *Device) ReadReg(offset uint32) (uint64, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	val := d.regs[offset]
	if offset == device.RegApCtrl {
		d.regs[offset] &^= device.CtrlDone
	}
	return val, nil
}

// Write a control register. Writing the start bit runs the kernel to
// completion before returning.
func (d *Device) WriteReg(offset uint32, value uint64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if offset != device.RegApCtrl {
		d.regs[offset] = value
		return nil
	}
	if value&device.CtrlStart == 0 || d.regs[offset]&device.CtrlIdle == 0 {
		return nil
	}

	d.regs[offset] = device.CtrlStart
	if err := d.run(); err != nil {
		d.regs[offset] = device.CtrlIdle | device.CtrlReady
		return err
	}
	d.regs[offset] = device.CtrlIdle | device.CtrlDone | device.CtrlReady
	return nil
}

func (d *Device) WriteDMA(addr uint64, data []byte) error {
	buf, err := d.bufferAt(addr, len(data))
	if err != nil {
		return err
	}
	return buf.write(addr-buf.base, data)
}

func (d *Device) ReadDMA(addr uint64, data []byte) error {
	buf, err := d.bufferAt(addr, len(data))
	if err != nil {
		return err
	}
	return buf.read(addr-buf.base, data)
}

func (d *Device) Close() error {
	for _, buf := range d.buffers {
		buf.release()
	}
	d.buffers = nil

	if d.kernel != nil {
		d.kernel.release()
		d.kernel = nil
	}
	if d.ctx != nil {
		d.ctx.release()
	}
	return nil
}

// Run the intersect kernel with one work item per ray. Buffer base addresses
// are fixed so only the element counts are passed to the kernel. Called while
// holding d.mutex.
func (d *Device) run() error {
	memMap := layout.DefaultMemoryMap
	if d.regs[device.RegTriData] != memMap.Tris || d.regs[device.RegTriIds] != memMap.TriIds ||
		d.regs[device.RegRayData] != memMap.Rays || d.regs[device.RegOutT] != memMap.OutT ||
		d.regs[device.RegOutIds] != memMap.OutIds {
		return fmt.Errorf("opencl device (%s): buffer addresses do not match the device memory map", d.ctx.name)
	}

	triCount := d.regs[device.RegTriCount]
	rayCount := d.regs[device.RegRayCount]
	if triCount > layout.MaxTriangles || rayCount > layout.MaxRays {
		return fmt.Errorf("opencl device (%s): counts out of range (triangles %d, rays %d)", d.ctx.name, triCount, rayCount)
	}
	if rayCount == 0 {
		return nil
	}

	err := d.kernel.setArgs(
		d.buffers[0], d.buffers[1], uint32(triCount),
		d.buffers[2], uint32(rayCount),
		d.buffers[3], d.buffers[4],
	)
	if err != nil {
		return err
	}

	elapsed, err := d.kernel.exec1D(int(rayCount))
	if err != nil {
		return err
	}
	d.logger.Debugf("intersected %d rays against %d triangles in %d ms", rayCount, triCount, elapsed.Nanoseconds()/1e6)
	return nil
}

func (d *Device) bufferAt(addr uint64, size int) (*buffer, error) {
	for _, buf := range d.buffers {
		if buf.contains(addr, size) {
			return buf, nil
		}
	}
	return nil, fmt.Errorf("opencl device (%s): DMA range [0x%x, 0x%x) does not map to a single device buffer", d.ctx.name, addr, addr+uint64(size))
}
