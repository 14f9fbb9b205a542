//go:build opencl

package cldev

import (
	"fmt"
	"strings"

	"github.com/achilleasa/darkray/tracer"
	"github.com/jgillich/go-opencl/cl"
)

// An opencl device discovered on one of the system platforms.
type deviceInfo struct {
	platform string
	name     string
	dev      *cl.Device
	gpu      bool
}

func (d deviceInfo) String() string {
	devType := "CPU"
	if d.gpu {
		devType = "GPU"
	}
	return fmt.Sprintf("%s: %s (%s)", d.platform, d.name, devType)
}

// Enumerate the CPU and GPU devices of all opencl platforms. GPU devices are
// listed first.
func scanDevices() ([]deviceInfo, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("%w: could not list opencl platforms: %v", tracer.ErrDeviceUnavailable, err)
	}

	var gpus, cpus []deviceInfo
	for _, platform := range platforms {
		for _, gpu := range []bool{true, false} {
			devType := cl.DeviceTypeCPU
			if gpu {
				devType = cl.DeviceTypeGPU
			}

			// Platforms without devices of the requested type report an error.
			devices, err := platform.GetDevices(devType)
			if err != nil {
				continue
			}
			for _, dev := range devices {
				info := deviceInfo{
					platform: platform.Name(),
					name:     dev.Name(),
					dev:      dev,
					gpu:      gpu,
				}
				if info.gpu {
					gpus = append(gpus, info)
				} else {
					cpus = append(cpus, info)
				}
			}
		}
	}

	return append(gpus, cpus...), nil
}

// Select the first device whose name contains matchName. An empty matchName
// selects the first available device.
func selectDevice(matchName string) (deviceInfo, error) {
	devices, err := scanDevices()
	if err != nil {
		return deviceInfo{}, err
	}
	for _, d := range devices {
		if matchName == "" || strings.Contains(d.name, matchName) {
			return d, nil
		}
	}
	return deviceInfo{}, fmt.Errorf("%w: no opencl device matching %q", tracer.ErrDeviceUnavailable, matchName)
}

// List the available OpenCL devices.
func ListDevices() ([]string, error) {
	devices, err := scanDevices()
	if err != nil {
		return nil, err
	}
	list := make([]string, len(devices))
	for idx, d := range devices {
		list[idx] = d.String()
	}
	return list, nil
}
