//go:build unix

package renderer

import (
	"time"

	"golang.org/x/sys/unix"
)

// Get the user and system CPU time consumed by the process so far.
func processCPUTime() time.Duration {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0
	}
	return time.Duration(usage.Utime.Nano() + usage.Stime.Nano())
}
