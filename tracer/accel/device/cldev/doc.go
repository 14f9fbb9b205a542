// Package cldev provides a device driver that runs the intersect core as an
// OpenCL kernel. The OpenCL driver is only compiled in when building with the
// opencl build tag:
//
//	go build -tags opencl
//
// The driver emulates the control register block on the host; the device
// memory map is backed by one OpenCL buffer per region.
package cldev

// The name used for registering this driver.
const DriverName = "opencl"
