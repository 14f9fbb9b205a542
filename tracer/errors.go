package tracer

import "errors"

var (
	// A degenerate triangle or a malformed ray was supplied to the intersection engine.
	ErrInvalidGeometry = errors.New("tracer: invalid geometry")

	// Host buffers for the accelerator could not be allocated.
	ErrAllocationFailure = errors.New("tracer: could not allocate host buffers")

	// The accelerator device handle could not be opened.
	ErrDeviceUnavailable = errors.New("tracer: accelerator device unavailable")

	// A bulk host/device transfer failed.
	ErrTransferFailure = errors.New("tracer: host/device transfer failed")

	// The accelerator did not report completion within the poll timeout.
	ErrDeviceTimeout = errors.New("tracer: timed out waiting for accelerator")

	// The requested backend or device driver is not supported by this build.
	ErrConfiguration = errors.New("tracer: unsupported configuration")

	// The ray or triangle count exceeds the accelerator capacity.
	ErrCapacityExceeded = errors.New("tracer: accelerator capacity exceeded")

	// The frame dimensions do not match the camera resolution.
	ErrFrameMismatch = errors.New("tracer: frame dimensions do not match camera resolution")

	// The tracer previously failed and can no longer be used.
	ErrTracerFailed = errors.New("tracer: tracer is in failed state")

	// The tracer has been closed.
	ErrTracerClosed = errors.New("tracer: tracer is closed")
)
