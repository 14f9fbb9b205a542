package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/darkray/tracer/accel/device"
	"github.com/achilleasa/darkray/tracer/accel/device/cldev"
	"github.com/urfave/cli"
)

// List the accelerator drivers compiled into this build and any OpenCL
// devices that the opencl driver can use.
func ListDevices(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	drivers := device.Drivers()
	buf.WriteString(fmt.Sprintf("\nBuild provides %d accelerator driver(s):\n\n", len(drivers)))
	for idx, name := range drivers {
		buf.WriteString(fmt.Sprintf("  [Driver %02d] %s\n", idx, name))
	}

	clDevices, err := cldev.ListDevices()
	if err != nil {
		buf.WriteString(fmt.Sprintf("\nOpenCL devices unavailable: %v\n", err))
	} else {
		buf.WriteString(fmt.Sprintf("\nSystem provides %d opencl device(s):\n\n", len(clDevices)))
		for idx, name := range clDevices {
			buf.WriteString(fmt.Sprintf("  [Device %02d] %s\n", idx, name))
		}
	}

	logger.Notice(buf.String())
	return nil
}
