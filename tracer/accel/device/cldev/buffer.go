//go:build opencl

package cldev

import (
	"fmt"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// A device buffer that backs a region of the device memory map.
type buffer struct {
	ctx       *clContext
	bufHandle *cl.MemObject

	// A name for identifying the buffer.
	name string

	// Base address in the device memory map and allocated size.
	base uint64
	size int
}

// Allocate a buffer of the given size backing the memory region at base.
func newBuffer(ctx *clContext, name string, base uint64, size int, flags cl.MemFlag) (*buffer, error) {
	handle, err := ctx.ctx.CreateEmptyBuffer(flags, size)
	if err != nil {
		return nil, ctx.errorf(err, fmt.Sprintf("could not allocate buffer %s of size %d", name, size))
	}

	return &buffer{
		ctx:       ctx,
		bufHandle: handle,
		name:      name,
		base:      base,
		size:      size,
	}, nil
}

// Returns true if the address range [addr, addr+size) lies inside the buffer.
func (b *buffer) contains(addr uint64, size int) bool {
	return addr >= b.base && addr-b.base <= uint64(b.size) && uint64(size) <= uint64(b.size)-(addr-b.base)
}

// Copy host data to the buffer at the given byte offset.
func (b *buffer) write(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	ev, err := b.ctx.cmdQueue.EnqueueWriteBuffer(b.bufHandle, true, int(offset), len(data), unsafe.Pointer(&data[0]), nil)
	releaseEvent(ev)
	if err != nil {
		return b.ctx.errorf(err, fmt.Sprintf("error copying host data to device buffer %s", b.name))
	}
	return nil
}

// Copy buffer contents at the given byte offset into data.
func (b *buffer) read(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	ev, err := b.ctx.cmdQueue.EnqueueReadBuffer(b.bufHandle, true, int(offset), len(data), unsafe.Pointer(&data[0]), nil)
	releaseEvent(ev)
	if err != nil {
		return b.ctx.errorf(err, fmt.Sprintf("error copying device data from %s to host buffer", b.name))
	}
	return nil
}

func (b *buffer) release() {
	if b.bufHandle != nil {
		b.bufHandle.Release()
		b.bufHandle = nil
	}
}

func releaseEvent(ev *cl.Event) {
	if ev != nil {
		ev.Release()
	}
}
