package accel

// The state of an accelerated render.
type State int

// Render states in execution order. Any failure moves the tracer to the
// terminal Failed state.
const (
	Idle State = iota
	BuffersAllocated
	DataTransferred
	Started
	Polling
	ResultsTransferred
	Shaded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case BuffersAllocated:
		return "BuffersAllocated"
	case DataTransferred:
		return "DataTransferred"
	case Started:
		return "Started"
	case Polling:
		return "Polling"
	case ResultsTransferred:
		return "ResultsTransferred"
	case Shaded:
		return "Shaded"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// Returns true if moving from state s to next is a valid transition.
func (s State) CanTransition(next State) bool {
	if s == Failed {
		return false
	}
	if next == Failed {
		return true
	}
	if s == Shaded {
		return next == Idle
	}
	return next == s+1
}
