package renderer

import (
	"fmt"
	"runtime"
	"time"

	"github.com/achilleasa/darkray/frame/writer"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/accel"
	"github.com/achilleasa/darkray/tracer/accel/device"
	"github.com/achilleasa/darkray/tracer/accel/device/emu"
	"github.com/achilleasa/darkray/tracer/intersect"
)

// The rendering backend.
type Backend uint8

// Supported backends.
const (
	BackendSoftware Backend = iota
	BackendAccelerated
)

func (b Backend) String() string {
	switch b {
	case BackendSoftware:
		return "software"
	case BackendAccelerated:
		return "accelerated"
	}
	return "unknown"
}

type Options struct {
	// Backend selection.
	Backend Backend

	// Accelerator device driver name and driver-specific device path.
	DeviceDriver string
	DevicePath   string

	// Number of software tracer workers; 1 renders sequentially.
	Workers int

	// Acceleration structure for software intersection queries.
	Engine intersect.Kind

	// Maximum time to wait for the accelerator to finish a batch.
	PollTimeout time.Duration

	// Output image; the encoder is selected by the file extension.
	OutputFile string
}

// Get the default render options.
func DefaultOptions() Options {
	return Options{
		Backend:      BackendSoftware,
		DeviceDriver: emu.DriverName,
		Workers:      runtime.NumCPU(),
		PollTimeout:  accel.DefaultPollTimeout,
		OutputFile:   "frame.ppm",
	}
}

// Check that the options are in range.
func (o Options) Validate() error {
	switch o.Backend {
	case BackendSoftware:
		if o.Workers < 1 {
			return fmt.Errorf("%w: worker count must be at least 1; got %d", tracer.ErrConfiguration, o.Workers)
		}
		if o.Engine.String() == "unknown" {
			return fmt.Errorf("%w: unknown intersection engine %d", tracer.ErrConfiguration, o.Engine)
		}
	case BackendAccelerated:
		if o.DeviceDriver == "" {
			return fmt.Errorf("%w: no accelerator device driver specified", tracer.ErrConfiguration)
		}
		if err := device.CheckDriver(o.DeviceDriver); err != nil {
			return err
		}
		if o.PollTimeout <= 0 {
			return fmt.Errorf("%w: poll timeout must be positive; got %s", tracer.ErrConfiguration, o.PollTimeout)
		}
	default:
		return fmt.Errorf("%w: unknown backend %d", tracer.ErrConfiguration, o.Backend)
	}

	if o.OutputFile != "" {
		if _, err := writer.FormatFromFilename(o.OutputFile); err != nil {
			return fmt.Errorf("%w: %v", tracer.ErrConfiguration, err)
		}
	}
	return nil
}
