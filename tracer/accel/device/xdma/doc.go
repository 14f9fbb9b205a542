// Package xdma provides a device driver for intersect cores attached through
// the Xilinx XDMA PCIe bridge. The driver talks to the XDMA character devices
// exposed by the kernel module: the AXI-lite user BAR for the control
// registers and one host-to-card and one card-to-host DMA channel.
//
// The driver is only available on linux.
package xdma

// The name used for registering this driver.
const DriverName = "xdma"

// Device node prefix used when no path is specified.
const DefaultPath = "/dev/xdma0"
