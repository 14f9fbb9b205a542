package device

// A Device exposes the control registers and the DMA-addressable memory of an
// intersect core. Implementations do not need to be safe for concurrent use;
// the accelerated tracer serializes access to its device handle.
type Device interface {
	// Get the device name.
	Name() string

	// Read a 64-bit control register.
	ReadReg(offset uint32) (uint64, error)

	// Write a 64-bit control register.
	WriteReg(offset uint32, value uint64) error

	// Copy data from host memory to device memory at the given address.
	WriteDMA(addr uint64, data []byte) error

	// Copy device memory at the given address into data.
	ReadDMA(addr uint64, data []byte) error

	// Release the device handle. It is safe to call Close more than once.
	Close() error
}

// Control register offsets.
const (
	RegApCtrl   uint32 = 0x00
	RegGIE      uint32 = 0x04
	RegIER      uint32 = 0x08
	RegISR      uint32 = 0x0c
	RegTriCount uint32 = 0x10
	RegTriData  uint32 = 0x18
	RegTriIds   uint32 = 0x20
	RegRayCount uint32 = 0x28
	RegRayData  uint32 = 0x30
	RegOutIds   uint32 = 0x38
	RegOutT     uint32 = 0x40
)

// AP_CTRL bits.
const (
	CtrlStart uint64 = 1 << iota
	// Cleared when AP_CTRL is read.
	CtrlDone
	CtrlIdle
	CtrlReady
)

// Returns true if the AP_CTRL value reports an idle core with no pending start.
func IsIdle(ctrl uint64) bool {
	return ctrl&CtrlIdle != 0 && ctrl&CtrlStart == 0
}

// Get a printable name for a register offset.
func RegName(offset uint32) string {
	switch offset {
	case RegApCtrl:
		return "AP_CTRL"
	case RegGIE:
		return "GIE"
	case RegIER:
		return "IER"
	case RegISR:
		return "ISR"
	case RegTriCount:
		return "TRI_COUNT"
	case RegTriData:
		return "TRI_DATA"
	case RegTriIds:
		return "TRI_IDS"
	case RegRayCount:
		return "RAY_COUNT"
	case RegRayData:
		return "RAY_DATA"
	case RegOutIds:
		return "OUT_IDS"
	case RegOutT:
		return "OUT_T"
	}
	return "UNKNOWN"
}
