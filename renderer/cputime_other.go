//go:build !unix

package renderer

import "time"

// CPU time accounting is not available on this platform.
func processCPUTime() time.Duration {
	return 0
}
