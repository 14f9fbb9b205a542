//go:build opencl

package cldev

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/jgillich/go-opencl/cl"
)

//go:embed intersect.cl
var kernelSource string

// OpenCL handles for a single device.
type clContext struct {
	name string
	dev  *cl.Device

	ctx      *cl.Context
	cmdQueue *cl.CommandQueue
	program  *cl.Program
}

// Create a context and command queue for the device and build the intersect
// program.
func newContext(name string, dev *cl.Device) (*clContext, error) {
	var err error
	c := &clContext{name: name, dev: dev}

	if c.ctx, err = cl.CreateContext([]*cl.Device{dev}); err != nil {
		c.release()
		return nil, c.errorf(err, "could not create opencl context")
	}

	if c.cmdQueue, err = c.ctx.CreateCommandQueue(dev, 0); err != nil {
		c.release()
		return nil, c.errorf(err, "could not create command queue")
	}

	if c.program, err = c.ctx.CreateProgramWithSource([]string{kernelSource}); err != nil {
		c.release()
		return nil, c.errorf(err, "could not create program")
	}

	if err = c.program.BuildProgram([]*cl.Device{dev}, ""); err != nil {
		c.release()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("opencl device (%s): could not build kernel:\n%s", c.name, string(buildErr))
		}
		return nil, c.errorf(err, "could not build kernel")
	}

	return c, nil
}

func (c *clContext) release() {
	if c.program != nil {
		c.program.Release()
		c.program = nil
	}
	if c.cmdQueue != nil {
		c.cmdQueue.Release()
		c.cmdQueue = nil
	}
	if c.ctx != nil {
		c.ctx.Release()
		c.ctx = nil
	}
}

func (c *clContext) errorf(err error, msg string) error {
	return fmt.Errorf("opencl device (%s): %s: %w", c.name, msg, err)
}
