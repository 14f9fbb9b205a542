//go:build linux

package xdma

import (
	"encoding/binary"
	"fmt"

	"github.com/achilleasa/darkray/log"
	"github.com/achilleasa/darkray/tracer/accel/device"
	"golang.org/x/sys/unix"
)

// Largest chunk submitted to the DMA engine in a single call.
const maxDMAChunk = 8 << 20

func init() {
	device.Register(DriverName, func(path string) (device.Device, error) {
		return Open(path)
	})
}

// An XDMA-attached intersect core.
type Device struct {
	logger log.Logger
	path   string

	userFd int
	h2cFd  int
	c2hFd  int
}

// Open the XDMA device nodes that share the given prefix (for example
// /dev/xdma0 opens /dev/xdma0_user, /dev/xdma0_h2c_0 and /dev/xdma0_c2h_0).
func Open(path string) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}

	d := &Device{
		logger: log.New(fmt.Sprintf("xdma device (%s)", path)),
		path:   path,
		userFd: -1,
		h2cFd:  -1,
		c2hFd:  -1,
	}

	var err error
	if d.userFd, err = openNode(path+"_user", unix.O_RDWR); err != nil {
		d.Close()
		return nil, err
	}
	if d.h2cFd, err = openNode(path+"_h2c_0", unix.O_WRONLY); err != nil {
		d.Close()
		return nil, err
	}
	if d.c2hFd, err = openNode(path+"_c2h_0", unix.O_RDONLY); err != nil {
		d.Close()
		return nil, err
	}

	d.logger.Debugf("opened device nodes")
	return d, nil
}

func (d *Device) Name() string {
	return fmt.Sprintf("%s (%s)", DriverName, d.path)
}

func (d *Device) ReadReg(offset uint32) (uint64, error) {
	var buf [8]byte
	if err := preadFull(d.userFd, buf[:], int64(offset)); err != nil {
		return 0, fmt.Errorf("xdma: read register %s: %w", device.RegName(offset), err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (d *Device) WriteReg(offset uint32, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	if err := pwriteFull(d.userFd, buf[:], int64(offset)); err != nil {
		return fmt.Errorf("xdma: write register %s: %w", device.RegName(offset), err)
	}
	return nil
}

func (d *Device) WriteDMA(addr uint64, data []byte) error {
	for off := 0; off < len(data); off += maxDMAChunk {
		end := min(off+maxDMAChunk, len(data))
		if err := pwriteFull(d.h2cFd, data[off:end], int64(addr)+int64(off)); err != nil {
			return fmt.Errorf("xdma: h2c transfer at 0x%x: %w", addr+uint64(off), err)
		}
	}
	return nil
}

func (d *Device) ReadDMA(addr uint64, data []byte) error {
	for off := 0; off < len(data); off += maxDMAChunk {
		end := min(off+maxDMAChunk, len(data))
		if err := preadFull(d.c2hFd, data[off:end], int64(addr)+int64(off)); err != nil {
			return fmt.Errorf("xdma: c2h transfer at 0x%x: %w", addr+uint64(off), err)
		}
	}
	return nil
}

func (d *Device) Close() error {
	var firstErr error
	for _, fd := range []*int{&d.userFd, &d.h2cFd, &d.c2hFd} {
		if *fd < 0 {
			continue
		}
		if err := unix.Close(*fd); err != nil && firstErr == nil {
			firstErr = err
		}
		*fd = -1
	}
	return firstErr
}

func openNode(path string, mode int) (int, error) {
	fd, err := unix.Open(path, mode|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("xdma: open %s: %w", path, err)
	}
	return fd, nil
}

func pwriteFull(fd int, data []byte, offset int64) error {
	for len(data) > 0 {
		n, err := unix.Pwrite(fd, data, offset)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short write; %d bytes remaining", len(data))
		}
		data = data[n:]
		offset += int64(n)
	}
	return nil
}

func preadFull(fd int, data []byte, offset int64) error {
	for len(data) > 0 {
		n, err := unix.Pread(fd, data, offset)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short read; %d bytes remaining", len(data))
		}
		data = data[n:]
		offset += int64(n)
	}
	return nil
}
