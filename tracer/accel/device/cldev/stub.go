//go:build !opencl

package cldev

import (
	"fmt"

	"github.com/achilleasa/darkray/tracer"
)

// List the available OpenCL devices.
func ListDevices() ([]string, error) {
	return nil, fmt.Errorf("%w: built without opencl support", tracer.ErrConfiguration)
}
