package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/achilleasa/darkray/tracer"
)

// A function that opens a device. The path argument is driver-specific and
// may be empty to request the driver default.
type OpenFunc func(path string) (Device, error)

var (
	driverMu sync.RWMutex
	drivers  = make(map[string]OpenFunc)
)

// Register a device driver under the given name. Drivers call Register from
// their package init function:
//
//	func init() {
//	    device.Register("emu", Open)
//	}
//
// Registering the same name twice replaces the previous driver.
func Register(name string, open OpenFunc) {
	if open == nil {
		panic("device: Register called with nil open function")
	}

	driverMu.Lock()
	drivers[name] = open
	driverMu.Unlock()
}

// Get the sorted list of registered driver names.
func Drivers() []string {
	driverMu.RLock()
	defer driverMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check that a driver with the given name is compiled into this build.
// Returns an ErrConfiguration error otherwise.
func CheckDriver(driver string) error {
	_, err := lookup(driver)
	return err
}

func lookup(driver string) (OpenFunc, error) {
	driverMu.RLock()
	open, ok := drivers[driver]
	driverMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf(
			"%w: device driver %q is not available in this build (available: %s)",
			tracer.ErrConfiguration, driver, strings.Join(Drivers(), ", "),
		)
	}
	return open, nil
}

// Open a device using the named driver. Unknown drivers cause an
// ErrConfiguration error; driver failures are reported as ErrDeviceUnavailable.
func Open(driver, path string) (Device, error) {
	open, err := lookup(driver)
	if err != nil {
		return nil, err
	}

	dev, err := open(path)
	if err != nil {
		if errors.Is(err, tracer.ErrDeviceUnavailable) || errors.Is(err, tracer.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s driver: %v", tracer.ErrDeviceUnavailable, driver, err)
	}
	return dev, nil
}
