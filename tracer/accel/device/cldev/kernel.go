//go:build opencl

package cldev

import (
	"fmt"
	"time"

	"github.com/jgillich/go-opencl/cl"
)

// A wrapper around an opencl kernel handle.
type kernel struct {
	ctx          *clContext
	kernelHandle *cl.Kernel
	name         string
}

// Load kernel by name.
func newKernel(ctx *clContext, name string) (*kernel, error) {
	handle, err := ctx.program.CreateKernel(name)
	if err != nil {
		return nil, ctx.errorf(err, fmt.Sprintf("could not load kernel %s", name))
	}

	return &kernel{ctx: ctx, kernelHandle: handle, name: name}, nil
}

// Bind arguments to the kernel. Supported argument types are *buffer,
// int32 and uint32.
func (k *kernel) setArgs(args ...interface{}) error {
	for argIndex, arg := range args {
		var err error
		switch v := arg.(type) {
		case *buffer:
			err = k.kernelHandle.SetArgBuffer(argIndex, v.bufHandle)
		case int32:
			err = k.kernelHandle.SetArgInt32(argIndex, v)
		case uint32:
			err = k.kernelHandle.SetArgUint32(argIndex, v)
		default:
			return fmt.Errorf("opencl device (%s): could not set arg %d for kernel %s; unsupported arg type %T", k.ctx.name, argIndex, k.name, arg)
		}

		if err != nil {
			return k.ctx.errorf(err, fmt.Sprintf("could not set arg %d for kernel %s", argIndex, k.name))
		}
	}

	return nil
}

// Execute a 1D kernel and wait for it to complete. The opencl implementation
// picks the local work size.
func (k *kernel) exec1D(globalWorkSize int) (time.Duration, error) {
	tick := time.Now()
	ev, err := k.ctx.cmdQueue.EnqueueNDRangeKernel(k.kernelHandle, nil, []int{globalWorkSize}, nil, nil)
	releaseEvent(ev)
	if err != nil {
		return 0, k.ctx.errorf(err, fmt.Sprintf("unable to execute kernel %s", k.name))
	}

	if err = k.ctx.cmdQueue.Finish(); err != nil {
		return 0, k.ctx.errorf(err, fmt.Sprintf("kernel %s did not complete successfully", k.name))
	}

	return time.Since(tick), nil
}

func (k *kernel) release() {
	if k.kernelHandle != nil {
		k.kernelHandle.Release()
		k.kernelHandle = nil
	}
}
