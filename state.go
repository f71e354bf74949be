package unison

// State represents the lifecycle state of a SharedValue.
type State int32

const (
	// StateLatent indicates the SharedValue has been constructed but not
	// started. Readers see only the seed value.
	StateLatent State = iota

	// StateStarted indicates Start has completed: the backing path exists,
	// the cache is populated, and a watch is armed.
	StateStarted

	// StateClosed indicates Close has been called. Mutating operations fail
	// and watch firings are dropped.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLatent:
		return "latent"
	case StateStarted:
		return "started"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
