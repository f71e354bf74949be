package unison

import "fmt"

// LifecycleError reports an operation attempted in a lifecycle state that
// does not permit it: a second Start, a write before Start, a write after
// Close. It is always returned synchronously by the offending call.
type LifecycleError struct {
	Op    string
	State State
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("unison: %s not permitted in state %s", e.Op, e.State)
}

func lifecycleErr(op string, state State) error {
	return &LifecycleError{Op: op, State: state}
}
