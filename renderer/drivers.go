package renderer

// Device drivers available to the accelerated backend. The xdma driver is
// linux-only and the opencl driver requires the opencl build tag; both
// packages compile to empty drivers otherwise.
import (
	_ "github.com/achilleasa/darkray/tracer/accel/device/cldev"
	_ "github.com/achilleasa/darkray/tracer/accel/device/emu"
	_ "github.com/achilleasa/darkray/tracer/accel/device/xdma"
)
