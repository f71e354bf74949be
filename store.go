package unison

import (
	"context"
	"errors"
	"time"
)

// Store is the narrow seam onto the backing coordination service. All calls
// are synchronous call-and-wait; cancellation and timeouts belong to the
// client used to reach the store, not to this interface.
//
// Implementations must be byte-for-byte transparent: Read must return exactly
// the bytes previously passed to Write for the same path, with no metadata
// framing or re-encoding. Implementations must be safe for concurrent use.
type Store interface {
	// Create stores the initial value at path. Returns ErrNodeExists if the
	// path already exists; callers seeding a value treat that as benign.
	Create(ctx context.Context, path string, data []byte) error

	// Read returns the current value and stat, and arms a one-shot watch.
	// The returned channel is closed exactly once, on the next change to the
	// path; it must be re-armed by the next Read. Returns ErrNoNode if the
	// path does not exist.
	Read(ctx context.Context, path string) ([]byte, Stat, <-chan struct{}, error)

	// Write unconditionally overwrites the value at path.
	Write(ctx context.Context, path string, data []byte) error

	// WriteIfVersion overwrites the value at path only if the store's
	// current version equals version. Returns ErrVersionConflict otherwise.
	WriteIfVersion(ctx context.Context, path string, data []byte, version int64) error

	// ConnectionStates subscribes to the store's connection-state stream.
	// The stop function unsubscribes and closes the channel; it must be
	// called exactly once. Transitions already in flight when stop is called
	// may still be delivered.
	ConnectionStates() (<-chan ConnState, func())
}

// Stat is the version stamp attached to a stored value. Version is the
// store's optimistic-concurrency counter; it increases with every write to
// the path. Modified is best-effort and may be zero for stores that do not
// track it.
type Stat struct {
	Version  int64
	Modified time.Time
}

// Sentinel errors surfaced by Store implementations.
var (
	// ErrNodeExists is returned by Create when the path already exists.
	ErrNodeExists = errors.New("unison: node already exists")

	// ErrNoNode is returned by Read when the path does not exist.
	ErrNoNode = errors.New("unison: node does not exist")

	// ErrVersionConflict is returned by WriteIfVersion when the expected
	// version no longer matches the store's. It is an expected outcome of
	// optimistic writes, not a failure of the store.
	ErrVersionConflict = errors.New("unison: version conflict")
)

// ConnState describes the health of the session to the backing store.
// Values are relayed to listeners verbatim; unison attaches no semantics of
// its own beyond forwarding them.
type ConnState int

const (
	// Connected indicates the first successful session establishment.
	Connected ConnState = iota

	// Suspended indicates the connection was lost; the session may still
	// recover.
	Suspended

	// Reconnected indicates the connection was re-established after a
	// suspension.
	Reconnected

	// Lost indicates the session expired and will not recover.
	Lost
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Suspended:
		return "suspended"
	case Reconnected:
		return "reconnected"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}
